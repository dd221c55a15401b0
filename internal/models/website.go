package models

import "time"

// SubscriptionType distinguishes automatic from approval-gated subscriptions.
type SubscriptionType string

const (
	SubscriptionAuto   SubscriptionType = "auto"
	SubscriptionManual SubscriptionType = "manual"
)

// AccessLevel names the minimum role tier required to reach a website.
type AccessLevel string

const (
	AccessAll      AccessLevel = "all"
	AccessStudents AccessLevel = "students"
	AccessMonitors AccessLevel = "monitors"
	AccessCurators AccessLevel = "curators"
	AccessTeachers AccessLevel = "teachers"
)

// WebsiteCategory groups websites in the catalog.
type WebsiteCategory struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Website is a subscribable third-party resource in the catalog.
type Website struct {
	ID               string           `db:"id" json:"id"`
	Name             string           `db:"name" json:"name"`
	URL              string           `db:"url" json:"url"`
	Description      string           `db:"description" json:"description,omitempty"`
	CategoryID       string           `db:"category_id" json:"category_id"`
	Active           bool             `db:"active" json:"active"`
	SubscriptionType SubscriptionType `db:"subscription_type" json:"subscription_type"`
	DurationDays     int              `db:"duration_days" json:"duration_days"`
	RequiresApproval bool             `db:"requires_approval" json:"requires_approval"`
	AccessLevel      AccessLevel      `db:"access_level" json:"access_level"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// WebsiteDetail carries the category name alongside the website row.
type WebsiteDetail struct {
	Website
	CategoryName string `db:"category_name" json:"category_name"`
}

// CatalogCategory is a category with its accessible websites, as served
// on the subscription management page.
type CatalogCategory struct {
	Category WebsiteCategory `json:"category"`
	Websites []WebsiteDetail `json:"websites"`
}
