package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proplio/api/services"
)

// ResidentHandler serves resident management for staff.
type ResidentHandler struct {
	Service *services.ResidentService
	Cache   *services.CachedProfileLoader
}

func NewResidentHandler(service *services.ResidentService, cache *services.CachedProfileLoader) *ResidentHandler {
	return &ResidentHandler{Service: service, Cache: cache}
}

func (h *ResidentHandler) ListResidents(c *gin.Context) {
	residents, err := h.Service.ListResidents(c.Request.Context(), c.Query("community_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, residents)
}

func (h *ResidentHandler) GetResident(c *gin.Context) {
	resident, err := h.Service.GetResident(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resident)
}

func (h *ResidentHandler) CreateResident(c *gin.Context) {
	var input services.ResidentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resident, err := h.Service.CreateResident(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resident)
}

func (h *ResidentHandler) DeleteResident(c *gin.Context) {
	resident, err := h.Service.GetResident(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if err := h.Service.DeleteResident(c.Request.Context(), resident.ID); err != nil {
		respondServiceError(c, err)
		return
	}

	h.Cache.Invalidate(c.Request.Context(), resident.AccountID)
	c.JSON(http.StatusOK, gin.H{"message": "resident deleted"})
}
