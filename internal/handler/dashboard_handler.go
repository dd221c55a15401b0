package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/models"
	"github.com/identica-edu/portal-api/internal/service"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
	"github.com/identica-edu/portal-api/pkg/response"
)

// DashboardHandler serves the role-dependent landing payload.
type DashboardHandler struct {
	dashboard *service.DashboardService
	profiles  *service.ProfileService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(dashboard *service.DashboardService, profiles *service.ProfileService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, profiles: profiles}
}

// Load godoc
// @Summary Role-dependent dashboard
// @Description Own subscriptions plus scoped student statistics for monitors, curators and teachers
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Load(c *gin.Context) {
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

	dashboard, err := h.dashboard.Load(c.Request.Context(), profile)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Monitor godoc
// @Summary Monitor dashboard
// @Description Students in the caller's group with subscription statistics
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/monitor [get]
func (h *DashboardHandler) Monitor(c *gin.Context) {
	h.scoped(c, models.ScopeGroup)
}

// Curator godoc
// @Summary Curator dashboard
// @Description Students and monitors on the caller's course with subscription statistics
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/curator [get]
func (h *DashboardHandler) Curator(c *gin.Context) {
	h.scoped(c, models.ScopeCourse)
}

// Teacher godoc
// @Summary Teacher dashboard
// @Description Every student and monitor with subscription statistics
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	h.scoped(c, models.ScopeAll)
}

func (h *DashboardHandler) scoped(c *gin.Context, scope string) {
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

	dashboard, err := h.dashboard.ScopedView(c.Request.Context(), profile, scope)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dashboard, nil)
}
