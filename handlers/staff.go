package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/services"
)

// StaffHandler serves the staff directory.
type StaffHandler struct {
	Service *services.StaffService
	Cache   *services.CachedProfileLoader
}

func NewStaffHandler(service *services.StaffService, cache *services.CachedProfileLoader) *StaffHandler {
	return &StaffHandler{Service: service, Cache: cache}
}

func (h *StaffHandler) ListStaff(c *gin.Context) {
	staff, err := h.Service.ListStaff(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (h *StaffHandler) GetStaff(c *gin.Context) {
	staff, err := h.Service.GetStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

// UpdateStaffRole changes a staff member's role. Admin-only route; the new
// role takes effect for the target within the cache TTL.
func (h *StaffHandler) UpdateStaffRole(c *gin.Context) {
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	staff, err := h.Service.UpdateStaffRole(c.Request.Context(), c.Param("id"), authz.Role(body.Role))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Cache.Invalidate(c.Request.Context(), staff.AccountID)
	c.JSON(http.StatusOK, staff)
}

func (h *StaffHandler) DeleteStaff(c *gin.Context) {
	staff, err := h.Service.GetStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if err := h.Service.DeleteStaff(c.Request.Context(), staff.ID); err != nil {
		respondServiceError(c, err)
		return
	}

	h.Cache.Invalidate(c.Request.Context(), staff.AccountID)
	c.JSON(http.StatusOK, gin.H{"message": "staff deleted"})
}
