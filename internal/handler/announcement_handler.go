package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/service"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
	"github.com/identica-edu/portal-api/pkg/response"
)

// AnnouncementHandler wires HTTP endpoints to the announcement service.
type AnnouncementHandler struct {
	announcements *service.AnnouncementService
	profiles      *service.ProfileService
}

// NewAnnouncementHandler creates a new handler.
func NewAnnouncementHandler(announcements *service.AnnouncementService, profiles *service.ProfileService) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements, profiles: profiles}
}

// Feed godoc
// @Summary Announcement feed
// @Description Active announcements addressed to the caller's role, group or course
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) Feed(c *gin.Context) {
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

	limit, _ := strconv.Atoi(c.Query("limit"))
	feed, err := h.announcements.Feed(c.Request.Context(), profile, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, feed, nil)
}

// Mine godoc
// @Summary Own announcements
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /announcements/mine [get]
func (h *AnnouncementHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	announcements, err := h.announcements.Mine(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, announcements, nil)
}

// Publish godoc
// @Summary Publish an announcement
// @Description Monitors address their group, curators their course, teachers anyone
// @Tags Announcements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Publish(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	announcement, err := h.announcements.Publish(c.Request.Context(), profile, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, announcement)
}
