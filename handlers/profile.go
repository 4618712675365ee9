package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/db"
	"github.com/proplio/api/services"
)

// ProfileHandler serves the caller's own profile: the /me surface.
type ProfileHandler struct {
	StaffService    *services.StaffService
	ResidentService *services.ResidentService
	PushService     *services.PushService
	Cache           *services.CachedProfileLoader
}

func NewProfileHandler(staffService *services.StaffService, residentService *services.ResidentService, pushService *services.PushService, cache *services.CachedProfileLoader) *ProfileHandler {
	return &ProfileHandler{
		StaffService:    staffService,
		ResidentService: residentService,
		PushService:     pushService,
		Cache:           cache,
	}
}

// GetMe returns the resolved profile plus role capabilities. An account with
// no profile gets an explicit no-profile response, not a 404: the onboarding
// screen polls this endpoint.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	profile := authz.ProfileFromContext(c)
	if profile == nil {
		c.JSON(http.StatusOK, gin.H{
			"profile":      nil,
			"capabilities": gin.H{},
			"state":        authz.StateNoProfile,
		})
		return
	}

	response := gin.H{
		"profile": profile,
		"state":   authz.StateFor(true, profile),
	}
	if profile.IsStaff() {
		response["capabilities"] = authz.CapabilitiesOf(profile.Role)
	} else {
		response["capabilities"] = gin.H{}
	}

	c.JSON(http.StatusOK, response)
}

// UpdateMe edits the caller's own profile fields.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	profile := authz.ProfileFromContext(c)

	switch {
	case profile.IsStaff():
		var input services.StaffUpdateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
		updated, err := h.StaffService.UpdateStaff(c.Request.Context(), profile.ID, input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		h.Cache.Invalidate(c.Request.Context(), profile.AccountID)
		c.JSON(http.StatusOK, updated)

	case profile.IsResident():
		var input services.ResidentUpdateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
		updated, err := h.ResidentService.UpdateResident(c.Request.Context(), profile.ID, input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		h.Cache.Invalidate(c.Request.Context(), profile.AccountID)
		c.JSON(http.StatusOK, updated)

	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "No profile to update"})
	}
}

// UpdatePreferences replaces the caller's notification toggles.
func (h *ProfileHandler) UpdatePreferences(c *gin.Context) {
	profile := authz.ProfileFromContext(c)

	var prefs db.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	var err error
	switch {
	case profile.IsStaff():
		err = h.StaffService.UpdatePreferences(c.Request.Context(), profile.ID, prefs)
	case profile.IsResident():
		err = h.ResidentService.UpdatePreferences(c.Request.Context(), profile.ID, prefs)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "No profile to update"})
		return
	}

	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Preferences updated", "preferences": prefs})
}

// UpdateFCMToken registers the caller's device token for push delivery.
func (h *ProfileHandler) UpdateFCMToken(c *gin.Context) {
	profile := authz.ProfileFromContext(c)

	var request struct {
		FCMToken string `json:"fcm_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	var err error
	switch {
	case profile.IsStaff():
		err = h.PushService.UpdateStaffFCMToken(c.Request.Context(), profile.ID, request.FCMToken)
	case profile.IsResident():
		err = h.PushService.UpdateResidentFCMToken(c.Request.Context(), profile.ID, request.FCMToken)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "No profile"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update FCM token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "FCM token updated successfully",
		"status":  "success",
	})
}
