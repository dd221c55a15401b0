package models

import (
	"encoding/json"
	"time"
)

// ReportType names the supported report generators.
type ReportType string

const (
	ReportSubscriptions ReportType = "subscriptions"
	ReportActivity      ReportType = "activity"
)

// WebsitePopularity is a per-website subscription count for reports.
type WebsitePopularity struct {
	Name              string `db:"name" json:"name"`
	SubscriptionCount int    `db:"subscription_count" json:"subscription_count"`
}

// SubscriptionActivity is one entry of the recent activity report.
type SubscriptionActivity struct {
	Username     string             `db:"username" json:"username"`
	WebsiteName  string             `db:"website_name" json:"website_name"`
	Status       SubscriptionStatus `db:"status" json:"status"`
	SubscribedAt time.Time          `db:"subscribed_at" json:"subscribed_at"`
}

// Report is a generated snapshot stored with its JSON payload.
type Report struct {
	ID        string          `db:"id" json:"id"`
	Title     string          `db:"title" json:"title"`
	Type      ReportType      `db:"report_type" json:"report_type"`
	CreatedBy string          `db:"created_by" json:"created_by"`
	Data      json.RawMessage `db:"data" json:"data"`
	Public    bool            `db:"public" json:"public"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
