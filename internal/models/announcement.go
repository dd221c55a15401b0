package models

import "time"

// AnnouncementPriority orders announcements in the feed.
type AnnouncementPriority string

const (
	PriorityLow    AnnouncementPriority = "low"
	PriorityMedium AnnouncementPriority = "medium"
	PriorityHigh   AnnouncementPriority = "high"
)

// AnnouncementTarget selects the audience of an announcement.
type AnnouncementTarget string

const (
	TargetAll      AnnouncementTarget = "all"
	TargetStudents AnnouncementTarget = "students"
	TargetMonitors AnnouncementTarget = "monitors"
	TargetCurators AnnouncementTarget = "curators"
	TargetTeachers AnnouncementTarget = "teachers"
	TargetGroup    AnnouncementTarget = "group"
	TargetCourse   AnnouncementTarget = "course"
)

// Announcement is a notice published to a targeted audience.
type Announcement struct {
	ID           string               `db:"id" json:"id"`
	Title        string               `db:"title" json:"title"`
	Content      string               `db:"content" json:"content"`
	CreatedBy    string               `db:"created_by" json:"created_by"`
	Priority     AnnouncementPriority `db:"priority" json:"priority"`
	Target       AnnouncementTarget   `db:"target" json:"target"`
	TargetGroup  *string              `db:"target_group" json:"target_group,omitempty"`
	TargetCourse *int                 `db:"target_course" json:"target_course,omitempty"`
	Active       bool                 `db:"active" json:"active"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
}
