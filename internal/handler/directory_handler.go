package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/directory"
	"github.com/identica-edu/portal-api/internal/service"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
	"github.com/identica-edu/portal-api/pkg/response"
)

// CheckAccessRequest names the page to check.
type CheckAccessRequest struct {
	URL string `json:"url" binding:"required"`
}

// DirectoryHandler exposes the directory-backed demonstration pages.
type DirectoryHandler struct {
	policy    *service.DirectoryAccessPolicy
	directory *directory.Service
}

// NewDirectoryHandler creates a new handler.
func NewDirectoryHandler(policy *service.DirectoryAccessPolicy, dir *directory.Service) *DirectoryHandler {
	return &DirectoryHandler{policy: policy, directory: dir}
}

// Pages godoc
// @Summary Demonstration pages
// @Description Every page with an access flag for the caller
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /directory/pages [get]
func (h *DirectoryHandler) Pages(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, h.policy.ListPages(claims.Username), nil)
}

// Check godoc
// @Summary Check page access
// @Description Group-based access decision for one page URL
// @Tags Directory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body CheckAccessRequest true "Check payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /directory/check [post]
func (h *DirectoryHandler) Check(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req CheckAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check payload"))
		return
	}

	granted := h.policy.CheckAccess(claims.Username, req.URL)
	response.JSON(c, http.StatusOK, gin.H{
		"url":            service.NormalizeURL(req.URL),
		"access_granted": granted,
	}, nil)
}

// Me godoc
// @Summary Directory record
// @Description The caller's directory entry and group memberships
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /directory/me [get]
func (h *DirectoryHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info := h.directory.GetUserInfo(claims.Username)
	groups := h.directory.GetUserGroups(claims.Username)
	response.JSON(c, http.StatusOK, gin.H{"user": info, "groups": groups}, nil)
}
