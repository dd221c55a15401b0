package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type catalogWebsiteRepository interface {
	ListCategories(ctx context.Context) ([]models.WebsiteCategory, error)
	FindCategoryByID(ctx context.Context, id string) (*models.WebsiteCategory, error)
	CreateCategory(ctx context.Context, category *models.WebsiteCategory) error
	ListActive(ctx context.Context) ([]models.WebsiteDetail, error)
	FindByID(ctx context.Context, id string) (*models.Website, error)
	Create(ctx context.Context, website *models.Website) error
	Update(ctx context.Context, website *models.Website) error
	Deactivate(ctx context.Context, id string) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type catalogCacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

const catalogCachePrefix = "catalog"

// CreateWebsiteRequest carries a new catalog entry.
type CreateWebsiteRequest struct {
	Name             string `json:"name" validate:"required,max=200"`
	URL              string `json:"url" validate:"required,url"`
	Description      string `json:"description"`
	CategoryID       string `json:"category_id" validate:"required,uuid"`
	SubscriptionType string `json:"subscription_type" validate:"required,oneof=auto manual"`
	DurationDays     int    `json:"duration_days" validate:"min=0,max=3650"`
	RequiresApproval bool   `json:"requires_approval"`
	AccessLevel      string `json:"access_level" validate:"required,oneof=all students monitors curators teachers"`
}

// CreateCategoryRequest carries a new catalog category.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// CatalogService serves the website catalog filtered by the caller's
// role, with a per-role Redis cache in front of the category listing.
type CatalogService struct {
	websites     catalogWebsiteRepository
	cache        catalogCache
	policy       subscriptionDecider
	metrics      catalogCacheObserver
	validator    *validator.Validate
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewCatalogService constructs a CatalogService. A nil cache disables
// caching regardless of configuration.
func NewCatalogService(websites catalogWebsiteRepository, cache catalogCache, policy subscriptionDecider, metrics catalogCacheObserver, validate *validator.Validate, logger *zap.Logger, cacheEnabled bool, cacheTTL time.Duration) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CatalogService{
		websites:     websites,
		cache:        cache,
		policy:       policy,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
	}
}

// Browse returns the active catalog grouped by category, restricted to
// websites the caller's role can access. Results are cached per role,
// never per user.
func (s *CatalogService) Browse(ctx context.Context, profile *models.Profile) ([]models.CatalogCategory, error) {
	cacheKey := fmt.Sprintf("%s:role:%s", catalogCachePrefix, profile.Role)
	if s.cacheEnabled {
		start := time.Now()
		var cached []models.CatalogCategory
		err := s.cache.Get(ctx, cacheKey, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		}
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	catalog, err := s.buildCatalog(ctx, profile)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled {
		if err := s.cache.Set(ctx, cacheKey, catalog, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return catalog, nil
}

func (s *CatalogService) buildCatalog(ctx context.Context, profile *models.Profile) ([]models.CatalogCategory, error) {
	categories, err := s.websites.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	websites, err := s.websites.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list websites")
	}

	byCategory := make(map[string][]models.WebsiteDetail, len(categories))
	for _, website := range websites {
		if !s.policy.CanAccess(profile, &website.Website) {
			continue
		}
		byCategory[website.CategoryID] = append(byCategory[website.CategoryID], website)
	}

	catalog := make([]models.CatalogCategory, 0, len(categories))
	for _, category := range categories {
		sites := byCategory[category.ID]
		if len(sites) == 0 {
			continue
		}
		catalog = append(catalog, models.CatalogCategory{Category: category, Websites: sites})
	}
	return catalog, nil
}

// GetWebsite returns a single active website the caller may access.
func (s *CatalogService) GetWebsite(ctx context.Context, profile *models.Profile, id string) (*models.Website, error) {
	website, err := s.websites.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "website not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load website")
	}
	if !website.Active || !s.policy.CanAccess(profile, website) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "website not found")
	}
	return website, nil
}

// CreateCategory adds a catalog category.
func (s *CatalogService) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*models.WebsiteCategory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	category := &models.WebsiteCategory{Name: req.Name, Description: req.Description}
	if err := s.websites.CreateCategory(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	s.invalidate(ctx)
	return category, nil
}

// CreateWebsite adds a website to the catalog.
func (s *CatalogService) CreateWebsite(ctx context.Context, req CreateWebsiteRequest) (*models.Website, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid website payload")
	}
	if _, err := s.websites.FindCategoryByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	website := &models.Website{
		Name:             req.Name,
		URL:              req.URL,
		Description:      req.Description,
		CategoryID:       req.CategoryID,
		Active:           true,
		SubscriptionType: models.SubscriptionType(req.SubscriptionType),
		DurationDays:     req.DurationDays,
		RequiresApproval: req.RequiresApproval,
		AccessLevel:      models.AccessLevel(req.AccessLevel),
	}
	if err := s.websites.Create(ctx, website); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create website")
	}
	s.invalidate(ctx)
	return website, nil
}

// UpdateWebsite replaces the editable fields of a catalog entry.
func (s *CatalogService) UpdateWebsite(ctx context.Context, id string, req CreateWebsiteRequest) (*models.Website, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid website payload")
	}
	website, err := s.websites.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "website not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load website")
	}

	website.Name = req.Name
	website.URL = req.URL
	website.Description = req.Description
	website.CategoryID = req.CategoryID
	website.SubscriptionType = models.SubscriptionType(req.SubscriptionType)
	website.DurationDays = req.DurationDays
	website.RequiresApproval = req.RequiresApproval
	website.AccessLevel = models.AccessLevel(req.AccessLevel)

	if err := s.websites.Update(ctx, website); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update website")
	}
	s.invalidate(ctx)
	return website, nil
}

// DeactivateWebsite hides a website from the catalog without touching
// existing subscription rows.
func (s *CatalogService) DeactivateWebsite(ctx context.Context, id string) error {
	if _, err := s.websites.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "website not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load website")
	}
	if err := s.websites.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate website")
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if !s.cacheEnabled {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCachePrefix+":*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
