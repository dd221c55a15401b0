package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/identica-edu/portal-api/internal/models"
)

// ReportRepository manages persistence for generated reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a generated report with its JSON payload.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reports (id, title, report_type, created_by, data, public, created_at)
        VALUES (:id, :title, :report_type, :created_by, :data, :public, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// FindByID fetches a report by identifier.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	const query = `SELECT id, title, report_type, created_by, data, public, created_at FROM reports WHERE id = $1 LIMIT 1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &report, nil
}

// ListByAuthor returns reports created by a profile, newest first.
func (r *ReportRepository) ListByAuthor(ctx context.Context, profileID string) ([]models.Report, error) {
	const query = `SELECT id, title, report_type, created_by, data, public, created_at FROM reports WHERE created_by = $1 ORDER BY created_at DESC`
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, profileID); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}
