package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/services"
)

// ApprovalHandler serves the staff-access workflow and the one-time
// first-admin bootstrap.
type ApprovalHandler struct {
	Service *authz.ApprovalService
	Cache   *services.CachedProfileLoader
}

func NewApprovalHandler(service *authz.ApprovalService, cache *services.CachedProfileLoader) *ApprovalHandler {
	return &ApprovalHandler{Service: service, Cache: cache}
}

// RequestStaffAccess files a pending staff-access request for the caller's
// account. Open to any authenticated account, profile or not.
func (h *ApprovalHandler) RequestStaffAccess(c *gin.Context) {
	accountID := c.GetString(string(authz.ContextKeyAccountID))

	var body struct {
		Name          string `json:"name" binding:"required"`
		RequestedRole string `json:"requested_role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	request, err := h.Service.RequestStaffAccess(c.Request.Context(), authz.RequestStaffAccessInput{
		AccountID:     accountID,
		Name:          body.Name,
		Email:         c.GetString("account_email"),
		RequestedRole: authz.Role(body.RequestedRole),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// ListRequests returns all approval requests for the admin screen.
func (h *ApprovalHandler) ListRequests(c *gin.Context) {
	requests, err := h.Service.ListRequests(c.Request.Context(), authz.ProfileFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// Approve grants the requested role and mints the staff profile.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	requestID := c.Param("id")

	accountID, err := h.Service.Approve(c.Request.Context(), authz.ProfileFromContext(c), requestID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// The approved account's cached no-profile entry is stale now.
	h.Cache.Invalidate(c.Request.Context(), accountID)
	c.JSON(http.StatusOK, gin.H{"message": "Request approved"})
}

// Reject declines a pending request.
func (h *ApprovalHandler) Reject(c *gin.Context) {
	requestID := c.Param("id")

	err := h.Service.Reject(c.Request.Context(), authz.ProfileFromContext(c), requestID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Request rejected"})
}

// AdminExists reports whether the first-admin bootstrap window is still open.
// Public: the setup screen calls it before any login exists.
func (h *ApprovalHandler) AdminExists(c *gin.Context) {
	exists, err := h.Service.AdminExists(c.Request.Context())
	if err != nil {
		// The probe failed; report the window closed rather than inviting a
		// second admin on bad data.
		c.JSON(http.StatusOK, gin.H{"admin_exists": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin_exists": exists})
}

// BootstrapAdmin creates the very first Admin profile. Races and repeat calls
// collapse to a 409.
func (h *ApprovalHandler) BootstrapAdmin(c *gin.Context) {
	var body struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	staff, err := h.Service.BootstrapFirstAdmin(c.Request.Context(), authz.BootstrapAdminInput{
		AccountID: c.GetString(string(authz.ContextKeyAccountID)),
		Name:      body.Name,
		Email:     body.Email,
		Password:  body.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Cache.Invalidate(c.Request.Context(), staff.AccountID)
	c.JSON(http.StatusCreated, staff)
}
