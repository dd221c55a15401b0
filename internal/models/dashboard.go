package models

// SubscriptionStats counts a set of subscriptions by status.
type SubscriptionStats struct {
	Active  int `json:"active"`
	Pending int `json:"pending"`
	Expired int `json:"expired"`
}

// Dashboard scope names.
const (
	ScopeGroup  = "group"
	ScopeCourse = "course"
	ScopeAll    = "all"
)

// Dashboard is the role-dependent landing payload. Scope and Students
// are empty for plain students; monitors see their group, curators
// their course, teachers everyone.
type Dashboard struct {
	Profile         *Profile             `json:"profile"`
	ProfileComplete bool                 `json:"profile_complete"`
	Subscriptions   []SubscriptionDetail `json:"subscriptions"`
	Stats           SubscriptionStats    `json:"stats"`
	Scope           string               `json:"scope,omitempty"`
	Students        []ProfileDetail      `json:"students,omitempty"`
	StudentStats    *SubscriptionStats   `json:"student_stats,omitempty"`
	PopularWebsites []WebsitePopularity  `json:"popular_websites,omitempty"`
}
