package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type fakeCatalogRepo struct {
	categories []models.WebsiteCategory
	active     []models.WebsiteDetail
	byID       map[string]*models.Website
	listCalls  int
}

func (f *fakeCatalogRepo) ListCategories(context.Context) ([]models.WebsiteCategory, error) {
	return f.categories, nil
}

func (f *fakeCatalogRepo) FindCategoryByID(_ context.Context, id string) (*models.WebsiteCategory, error) {
	for i := range f.categories {
		if f.categories[i].ID == id {
			return &f.categories[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCatalogRepo) CreateCategory(_ context.Context, category *models.WebsiteCategory) error {
	category.ID = "cat-new"
	f.categories = append(f.categories, *category)
	return nil
}

func (f *fakeCatalogRepo) ListActive(context.Context) ([]models.WebsiteDetail, error) {
	f.listCalls++
	return f.active, nil
}

func (f *fakeCatalogRepo) FindByID(_ context.Context, id string) (*models.Website, error) {
	website, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return website, nil
}

func (f *fakeCatalogRepo) Create(_ context.Context, website *models.Website) error {
	website.ID = "web-new"
	return nil
}

func (f *fakeCatalogRepo) Update(context.Context, *models.Website) error { return nil }

func (f *fakeCatalogRepo) Deactivate(context.Context, string) error { return nil }

// fakeCatalogCache stores marshalled values in memory, mirroring the
// Redis-backed cache repository closely enough for the service.
type fakeCatalogCache struct {
	entries map[string][]byte
	deletes []string
}

func newFakeCatalogCache() *fakeCatalogCache {
	return &fakeCatalogCache{entries: map[string][]byte{}}
}

func (f *fakeCatalogCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCatalogCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	return nil
}

func (f *fakeCatalogCache) DeleteByPattern(_ context.Context, pattern string) error {
	f.deletes = append(f.deletes, pattern)
	f.entries = map[string][]byte{}
	return nil
}

const (
	catEducationID = "11111111-1111-1111-1111-111111111111"
	catDesignID    = "22222222-2222-2222-2222-222222222222"
)

func catalogFixture() *fakeCatalogRepo {
	website := func(id, name string, level models.AccessLevel) models.WebsiteDetail {
		return models.WebsiteDetail{
			Website: models.Website{
				ID:          id,
				Name:        name,
				URL:         "https://" + id + ".example.org",
				CategoryID:  catEducationID,
				Active:      true,
				AccessLevel: level,
			},
			CategoryName: "Education",
		}
	}
	return &fakeCatalogRepo{
		categories: []models.WebsiteCategory{
			{ID: catEducationID, Name: "Education"},
			{ID: catDesignID, Name: "Design"},
		},
		active: []models.WebsiteDetail{
			website("web-1", "Coursera", models.AccessAll),
			website("web-2", "Teacher Portal", models.AccessTeachers),
		},
		byID: map[string]*models.Website{},
	}
}

func TestBrowseFiltersByRole(t *testing.T) {
	repo := catalogFixture()
	svc := NewCatalogService(repo, nil, NewRoleAccessPolicy(), nil, nil, nil, false, 0)

	catalog, err := svc.Browse(context.Background(), profileWithRole(models.RoleStudent))
	require.NoError(t, err)

	require.Len(t, catalog, 1)
	assert.Equal(t, "Education", catalog[0].Category.Name)
	require.Len(t, catalog[0].Websites, 1)
	assert.Equal(t, "Coursera", catalog[0].Websites[0].Name)

	catalog, err = svc.Browse(context.Background(), profileWithRole(models.RoleTeacher))
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Len(t, catalog[0].Websites, 2)
}

func TestBrowseOmitsEmptyCategories(t *testing.T) {
	repo := catalogFixture()
	svc := NewCatalogService(repo, nil, NewRoleAccessPolicy(), nil, nil, nil, false, 0)

	catalog, err := svc.Browse(context.Background(), profileWithRole(models.RoleAdmin))
	require.NoError(t, err)

	for _, entry := range catalog {
		assert.NotEqual(t, "Design", entry.Category.Name)
	}
}

func TestBrowseServesSecondCallFromCache(t *testing.T) {
	repo := catalogFixture()
	cache := newFakeCatalogCache()
	svc := NewCatalogService(repo, cache, NewRoleAccessPolicy(), nil, nil, nil, true, time.Minute)

	student := profileWithRole(models.RoleStudent)
	first, err := svc.Browse(context.Background(), student)
	require.NoError(t, err)
	second, err := svc.Browse(context.Background(), student)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, first, second)
	assert.Contains(t, cache.entries, "catalog:role:student")
}

func TestBrowseCachesPerRole(t *testing.T) {
	repo := catalogFixture()
	cache := newFakeCatalogCache()
	svc := NewCatalogService(repo, cache, NewRoleAccessPolicy(), nil, nil, nil, true, time.Minute)

	_, err := svc.Browse(context.Background(), profileWithRole(models.RoleStudent))
	require.NoError(t, err)
	_, err = svc.Browse(context.Background(), profileWithRole(models.RoleTeacher))
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls)
	assert.Contains(t, cache.entries, "catalog:role:student")
	assert.Contains(t, cache.entries, "catalog:role:teacher")
}

func TestCreateWebsiteInvalidatesCache(t *testing.T) {
	repo := catalogFixture()
	cache := newFakeCatalogCache()
	svc := NewCatalogService(repo, cache, NewRoleAccessPolicy(), nil, nil, nil, true, time.Minute)

	_, err := svc.Browse(context.Background(), profileWithRole(models.RoleStudent))
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	_, err = svc.CreateWebsite(context.Background(), CreateWebsiteRequest{
		Name:             "edX",
		URL:              "https://edx.org",
		CategoryID:       catEducationID,
		SubscriptionType: "auto",
		DurationDays:     180,
		AccessLevel:      "all",
	})
	require.NoError(t, err)

	assert.Empty(t, cache.entries)
	assert.Equal(t, []string{"catalog:*"}, cache.deletes)
}

func TestCreateWebsiteRequiresExistingCategory(t *testing.T) {
	svc := NewCatalogService(catalogFixture(), nil, NewRoleAccessPolicy(), nil, nil, nil, false, 0)

	_, err := svc.CreateWebsite(context.Background(), CreateWebsiteRequest{
		Name:             "edX",
		URL:              "https://edx.org",
		CategoryID:       "99999999-9999-9999-9999-999999999999",
		SubscriptionType: "auto",
		AccessLevel:      "all",
	})

	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}

func TestGetWebsiteHidesInaccessibleEntries(t *testing.T) {
	repo := catalogFixture()
	repo.byID["web-2"] = &models.Website{ID: "web-2", Name: "Teacher Portal", Active: true, AccessLevel: models.AccessTeachers}
	repo.byID["web-3"] = &models.Website{ID: "web-3", Name: "Retired", Active: false, AccessLevel: models.AccessAll}
	svc := NewCatalogService(repo, nil, NewRoleAccessPolicy(), nil, nil, nil, false, 0)

	_, err := svc.GetWebsite(context.Background(), profileWithRole(models.RoleStudent), "web-2")
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)

	_, err = svc.GetWebsite(context.Background(), profileWithRole(models.RoleStudent), "web-3")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)

	website, err := svc.GetWebsite(context.Background(), profileWithRole(models.RoleTeacher), "web-2")
	require.NoError(t, err)
	assert.Equal(t, "Teacher Portal", website.Name)
}
