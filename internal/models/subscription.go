package models

import "time"

// SubscriptionStatus enumerates the subscription state machine states.
// Deletion (cancel) exits the machine entirely and is not a status.
type SubscriptionStatus string

const (
	SubscriptionPending  SubscriptionStatus = "pending"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionExpired  SubscriptionStatus = "expired"
	SubscriptionRejected SubscriptionStatus = "rejected"
)

// Subscription links a profile to a website. At most one row exists per
// (profile, website) pair, enforced by a unique constraint.
type Subscription struct {
	ID           string             `db:"id" json:"id"`
	ProfileID    string             `db:"profile_id" json:"profile_id"`
	WebsiteID    string             `db:"website_id" json:"website_id"`
	Status       SubscriptionStatus `db:"status" json:"status"`
	SubscribedAt time.Time          `db:"subscribed_at" json:"subscribed_at"`
	ExpiresAt    *time.Time         `db:"expires_at" json:"expires_at,omitempty"`
	ApprovedBy   *string            `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time         `db:"approved_at" json:"approved_at,omitempty"`
}

// IsExpired reports whether the expiry timestamp is set and in the past.
// It is derived; the stored status only changes on the lazy sweep.
func (s *Subscription) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// DaysRemaining returns the whole days until expiry for active
// subscriptions with an expiry set, and 0 in every other case.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.Status != SubscriptionActive || s.ExpiresAt == nil {
		return 0
	}
	days := int(s.ExpiresAt.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// SubscriptionDetail joins the subscription with its website for listings.
type SubscriptionDetail struct {
	Subscription
	WebsiteName   string      `db:"website_name" json:"website_name"`
	WebsiteURL    string      `db:"website_url" json:"website_url"`
	AccessLevel   AccessLevel `db:"access_level" json:"access_level"`
	DaysRemaining int         `db:"-" json:"days_remaining"`
	Expired       bool        `db:"-" json:"is_expired"`
}

// BulkReplaceResult summarises a bulk subscription replace.
type BulkReplaceResult struct {
	Added   int      `json:"added"`
	Pending int      `json:"pending"`
	Removed int      `json:"removed"`
	Denied  []string `json:"denied,omitempty"`
}
