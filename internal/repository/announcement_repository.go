package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/identica-edu/portal-api/internal/models"
)

// AnnouncementRepository manages persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository constructs an AnnouncementRepository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO announcements (id, title, content, created_by, priority, target, target_group, target_course, active, created_at)
        VALUES (:id, :title, :content, :created_by, :priority, :target, :target_group, :target_course, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// ListForAudience returns active announcements visible to a profile:
// everything addressed to all, to the profile's role audience, to its
// exact group or to its course.
func (r *AnnouncementRepository) ListForAudience(ctx context.Context, roleTarget models.AnnouncementTarget, group string, course int, limit int) ([]models.Announcement, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, title, content, created_by, priority, target, target_group, target_course, active, created_at
        FROM announcements
        WHERE active = TRUE AND (
            target = $1
            OR target = $2
            OR (target = $3 AND target_group = $4)
            OR (target = $5 AND target_course = $6)
        )
        ORDER BY created_at DESC LIMIT $7`
	var announcements []models.Announcement
	err := r.db.SelectContext(ctx, &announcements, query,
		models.TargetAll, roleTarget, models.TargetGroup, group, models.TargetCourse, course, limit)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return announcements, nil
}

// ListByAuthor returns the announcements created by a profile.
func (r *AnnouncementRepository) ListByAuthor(ctx context.Context, profileID string) ([]models.Announcement, error) {
	const query = `SELECT id, title, content, created_by, priority, target, target_group, target_course, active, created_at
        FROM announcements WHERE created_by = $1 ORDER BY created_at DESC`
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, profileID); err != nil {
		return nil, fmt.Errorf("list announcements by author: %w", err)
	}
	return announcements, nil
}
