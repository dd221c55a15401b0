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

// WebsiteRepository manages persistence for the website catalog.
type WebsiteRepository struct {
	db *sqlx.DB
}

// NewWebsiteRepository constructs a WebsiteRepository.
func NewWebsiteRepository(db *sqlx.DB) *WebsiteRepository {
	return &WebsiteRepository{db: db}
}

// ListCategories returns every catalog category ordered by name.
func (r *WebsiteRepository) ListCategories(ctx context.Context) ([]models.WebsiteCategory, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM website_categories ORDER BY name`
	var categories []models.WebsiteCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindCategoryByID fetches a single category.
func (r *WebsiteRepository) FindCategoryByID(ctx context.Context, id string) (*models.WebsiteCategory, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM website_categories WHERE id = $1 LIMIT 1`
	var category models.WebsiteCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &category, nil
}

// CreateCategory inserts a new category.
func (r *WebsiteRepository) CreateCategory(ctx context.Context, category *models.WebsiteCategory) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now
	const query = `INSERT INTO website_categories (id, name, description, created_at, updated_at)
        VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// ListActive returns active websites with their category names.
func (r *WebsiteRepository) ListActive(ctx context.Context) ([]models.WebsiteDetail, error) {
	const query = `SELECT w.id, w.name, w.url, w.description, w.category_id, w.active, w.subscription_type, w.duration_days, w.requires_approval, w.access_level, w.created_at, w.updated_at,
        c.name AS category_name
        FROM websites w JOIN website_categories c ON c.id = w.category_id
        WHERE w.active = TRUE ORDER BY c.name, w.name`
	var websites []models.WebsiteDetail
	if err := r.db.SelectContext(ctx, &websites, query); err != nil {
		return nil, fmt.Errorf("list active websites: %w", err)
	}
	return websites, nil
}

// FindByID fetches a website by identifier.
func (r *WebsiteRepository) FindByID(ctx context.Context, id string) (*models.Website, error) {
	const query = `SELECT id, name, url, description, category_id, active, subscription_type, duration_days, requires_approval, access_level, created_at, updated_at FROM websites WHERE id = $1 LIMIT 1`
	var website models.Website
	if err := r.db.GetContext(ctx, &website, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find website: %w", err)
	}
	return &website, nil
}

// Create inserts a new website.
func (r *WebsiteRepository) Create(ctx context.Context, website *models.Website) error {
	if website.ID == "" {
		website.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if website.CreatedAt.IsZero() {
		website.CreatedAt = now
	}
	website.UpdatedAt = now
	const query = `INSERT INTO websites (id, name, url, description, category_id, active, subscription_type, duration_days, requires_approval, access_level, created_at, updated_at)
        VALUES (:id, :name, :url, :description, :category_id, :active, :subscription_type, :duration_days, :requires_approval, :access_level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, website); err != nil {
		return fmt.Errorf("create website: %w", err)
	}
	return nil
}

// Update modifies an existing website.
func (r *WebsiteRepository) Update(ctx context.Context, website *models.Website) error {
	website.UpdatedAt = time.Now().UTC()
	const query = `UPDATE websites SET name = :name, url = :url, description = :description, category_id = :category_id, active = :active, subscription_type = :subscription_type, duration_days = :duration_days, requires_approval = :requires_approval, access_level = :access_level, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, website); err != nil {
		return fmt.Errorf("update website: %w", err)
	}
	return nil
}

// Deactivate marks a website inactive, hiding it from the catalog.
func (r *WebsiteRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE websites SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate website: %w", err)
	}
	return nil
}
