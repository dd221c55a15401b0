package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/service"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
	"github.com/identica-edu/portal-api/pkg/response"
)

// CatalogHandler serves the website catalog.
type CatalogHandler struct {
	catalog  *service.CatalogService
	profiles *service.ProfileService
}

// NewCatalogHandler creates a new handler.
func NewCatalogHandler(catalog *service.CatalogService, profiles *service.ProfileService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, profiles: profiles}
}

// Browse godoc
// @Summary Browse the catalog
// @Description Active websites grouped by category, filtered by the caller's role
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /catalog [get]
func (h *CatalogHandler) Browse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	catalog, err := h.catalog.Browse(c.Request.Context(), profile)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, catalog, nil)
}

// GetWebsite godoc
// @Summary Website details
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Website id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /catalog/websites/{id} [get]
func (h *CatalogHandler) GetWebsite(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	website, err := h.catalog.GetWebsite(c.Request.Context(), profile, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, website, nil)
}

// CreateCategory godoc
// @Summary Create a catalog category
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateCategoryRequest true "Category payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/categories [post]
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req service.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid category payload"))
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, category)
}

// CreateWebsite godoc
// @Summary Add a website to the catalog
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateWebsiteRequest true "Website payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/websites [post]
func (h *CatalogHandler) CreateWebsite(c *gin.Context) {
	var req service.CreateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid website payload"))
		return
	}

	website, err := h.catalog.CreateWebsite(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, website)
}

// UpdateWebsite godoc
// @Summary Update a catalog website
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Website id"
// @Param payload body service.CreateWebsiteRequest true "Website payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/websites/{id} [put]
func (h *CatalogHandler) UpdateWebsite(c *gin.Context) {
	var req service.CreateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid website payload"))
		return
	}

	website, err := h.catalog.UpdateWebsite(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, website, nil)
}

// DeactivateWebsite godoc
// @Summary Remove a website from the catalog
// @Description Soft delete; existing subscriptions are untouched
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Website id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/websites/{id} [delete]
func (h *CatalogHandler) DeactivateWebsite(c *gin.Context) {
	if err := h.catalog.DeactivateWebsite(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
