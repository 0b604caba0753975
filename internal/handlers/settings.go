package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	tasksync "liquid-tasks/internal/sync"
)

type SettingsHandler struct {
	coordinator *tasksync.Coordinator
}

func NewSettingsHandler(coordinator *tasksync.Coordinator) *SettingsHandler {
	return &SettingsHandler{coordinator: coordinator}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"theme":       h.coordinator.Theme(),
		"animation":   h.coordinator.Animation(),
		"haptics":     h.coordinator.Haptics(),
		"sounds":      h.coordinator.Sounds(),
		"guest_photo": h.coordinator.GuestPhoto(),
		"streak":      h.coordinator.Streak(),
	})
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var input struct {
		Theme      *string `json:"theme"`
		Animation  *string `json:"animation"`
		Haptics    *bool   `json:"haptics"`
		Sounds     *bool   `json:"sounds"`
		GuestPhoto *string `json:"guest_photo"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Theme != nil {
		if err := h.coordinator.SetTheme(*input.Theme); err != nil {
			settingsError(c, err)
			return
		}
	}
	if input.Animation != nil {
		if err := h.coordinator.SetAnimation(*input.Animation); err != nil {
			settingsError(c, err)
			return
		}
	}
	if input.Haptics != nil {
		if err := h.coordinator.SetHaptics(*input.Haptics); err != nil {
			settingsError(c, err)
			return
		}
	}
	if input.Sounds != nil {
		if err := h.coordinator.SetSounds(*input.Sounds); err != nil {
			settingsError(c, err)
			return
		}
	}
	if input.GuestPhoto != nil {
		if err := h.coordinator.SetGuestPhoto(*input.GuestPhoto); err != nil {
			settingsError(c, err)
			return
		}
	}

	h.GetSettings(c)
}

// GetWeather serves the cached weather payload, if one has been stored.
func (h *SettingsHandler) GetWeather(c *gin.Context) {
	payload, ok := h.coordinator.Weather()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no weather data cached"})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(payload))
}

func (h *SettingsHandler) UpdateWeather(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weather payload required"})
		return
	}
	if err := h.coordinator.SetWeather(string(raw)); err != nil {
		settingsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "weather cached"})
}

func settingsError(c *gin.Context, err error) {
	log.Printf("⚠️  Settings update failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist settings"})
}
