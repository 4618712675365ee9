package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/services"
)

// MaintenanceHandler serves maintenance requests for residents and staff.
type MaintenanceHandler struct {
	Service *services.MaintenanceService
}

func NewMaintenanceHandler(service *services.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{Service: service}
}

func (h *MaintenanceHandler) ListRequests(c *gin.Context) {
	requests, err := h.Service.ListRequests(c.Request.Context(), authz.ProfileFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *MaintenanceHandler) GetRequest(c *gin.Context) {
	request, err := h.Service.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *MaintenanceHandler) CreateRequest(c *gin.Context) {
	var input services.MaintenanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.Service.CreateRequest(c.Request.Context(), authz.ProfileFromContext(c), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// UpdateStatus is the staff-side status/assignment change.
func (h *MaintenanceHandler) UpdateStatus(c *gin.Context) {
	var input services.MaintenanceStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.Service.UpdateStatus(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
