package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/models"
	"github.com/identica-edu/portal-api/internal/service"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
	"github.com/identica-edu/portal-api/pkg/response"
)

// SubscribeRequest names the website to subscribe to.
type SubscribeRequest struct {
	WebsiteID string `json:"website_id" binding:"required"`
}

// SubscriptionHandler wires HTTP endpoints to the subscription service.
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
	profiles      *service.ProfileService
}

// NewSubscriptionHandler creates a new handler.
func NewSubscriptionHandler(subscriptions *service.SubscriptionService, profiles *service.ProfileService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, profiles: profiles}
}

// List godoc
// @Summary Own subscriptions
// @Description Expired rows are swept before listing
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /subscriptions [get]
func (h *SubscriptionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	subs, err := h.subscriptions.ListOwn(c.Request.Context(), claims.ProfileID, models.SubscriptionStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, subs, nil)
}

// Create godoc
// @Summary Subscribe to a website
// @Description Auto websites activate immediately, approval-gated ones start pending
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body SubscribeRequest true "Subscription payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /subscriptions [post]
func (h *SubscriptionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subscription payload"))
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	sub, err := h.subscriptions.Subscribe(c.Request.Context(), profile, req.WebsiteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, sub)
}

// Replace godoc
// @Summary Replace the whole subscription selection
// @Description Atomic bulk replace; inaccessible websites are skipped and reported
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkSubscribeRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /subscriptions [put]
func (h *SubscriptionHandler) Replace(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.subscriptions.Replace(c.Request.Context(), profile, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel an own subscription
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subscriptions/{id} [delete]
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.subscriptions.Cancel(c.Request.Context(), claims.ProfileID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
