package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/service"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
	"github.com/identica-edu/portal-api/pkg/response"
)

// AdminHandler serves the subscription approval queue.
type AdminHandler struct {
	subscriptions *service.SubscriptionService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(subscriptions *service.SubscriptionService) *AdminHandler {
	return &AdminHandler{subscriptions: subscriptions}
}

// PendingSubscriptions godoc
// @Summary Pending approval queue
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/subscriptions/pending [get]
func (h *AdminHandler) PendingSubscriptions(c *gin.Context) {
	subs, err := h.subscriptions.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// Approve godoc
// @Summary Approve a pending subscription
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/subscriptions/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sub, err := h.subscriptions.Approve(c.Request.Context(), claims.ProfileID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Reject godoc
// @Summary Reject a pending subscription
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/subscriptions/{id}/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sub, err := h.subscriptions.Reject(c.Request.Context(), claims.ProfileID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// BulkApprove godoc
// @Summary Approve a batch of pending subscriptions
// @Description Rows already decided are skipped; the response reports how many changed
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/subscriptions/bulk-approve [post]
func (h *AdminHandler) BulkApprove(c *gin.Context) {
	h.bulkDecide(c, h.subscriptions.BulkApprove)
}

// BulkReject godoc
// @Summary Reject a batch of pending subscriptions
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/subscriptions/bulk-reject [post]
func (h *AdminHandler) BulkReject(c *gin.Context) {
	h.bulkDecide(c, h.subscriptions.BulkReject)
}

func (h *AdminHandler) bulkDecide(c *gin.Context, decide func(ctx context.Context, approverID string, req service.BulkDecisionRequest) (int64, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	applied, err := decide(c.Request.Context(), claims.ProfileID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"requested": len(req.SubscriptionIDs),
		"applied":   applied,
		"skipped":   int64(len(req.SubscriptionIDs)) - applied,
	}, nil)
}
