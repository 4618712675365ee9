package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/services"
)

// CommunityHandler serves community CRUD and staff assignment endpoints.
type CommunityHandler struct {
	Service *services.CommunityService
}

func NewCommunityHandler(service *services.CommunityService) *CommunityHandler {
	return &CommunityHandler{Service: service}
}

func (h *CommunityHandler) ListCommunities(c *gin.Context) {
	communities, err := h.Service.ListCommunities(c.Request.Context(), authz.ProfileFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, communities)
}

// GetMyCommunity returns the caller's own community: the resident-facing
// counterpart of GetCommunity, scoped by profile instead of URL.
func (h *CommunityHandler) GetMyCommunity(c *gin.Context) {
	profile := authz.ProfileFromContext(c)
	if !profile.IsResident() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Resident profile required"})
		return
	}

	community, err := h.Service.GetCommunity(c.Request.Context(), profile.CommunityID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) GetCommunity(c *gin.Context) {
	community, err := h.Service.GetCommunity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) CreateCommunity(c *gin.Context) {
	var input services.CommunityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	community, err := h.Service.CreateCommunity(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, community)
}

func (h *CommunityHandler) UpdateCommunity(c *gin.Context) {
	var input services.CommunityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	community, err := h.Service.UpdateCommunity(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) DeleteCommunity(c *gin.Context) {
	if err := h.Service.DeleteCommunity(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "community deleted"})
}

func (h *CommunityHandler) ListCommunityStaff(c *gin.Context) {
	links, err := h.Service.ListCommunityStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *CommunityHandler) AssignStaff(c *gin.Context) {
	var body struct {
		StaffID  string `json:"staff_id" binding:"required"`
		LinkRole string `json:"link_role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Service.AssignStaff(c.Request.Context(), c.Param("id"), body.StaffID, body.LinkRole); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "staff assigned"})
}

func (h *CommunityHandler) RemoveStaff(c *gin.Context) {
	if err := h.Service.RemoveStaff(c.Request.Context(), c.Param("id"), c.Param("staff_id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "staff removed"})
}
