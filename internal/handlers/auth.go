package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"liquid-tasks/internal/identity"
	tasksync "liquid-tasks/internal/sync"
)

type AuthHandler struct {
	provider    identity.Provider
	coordinator *tasksync.Coordinator
}

func NewAuthHandler(provider identity.Provider, coordinator *tasksync.Coordinator) *AuthHandler {
	return &AuthHandler{provider: provider, coordinator: coordinator}
}

type credentialsInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input credentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.provider.SignUp(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, id)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input credentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.provider.SignIn(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

// LoginFederated accepts a profile asserted by an upstream identity provider.
func (h *AuthHandler) LoginFederated(c *gin.Context) {
	var input struct {
		Provider    string `json:"provider" binding:"required"`
		Email       string `json:"email" binding:"required"`
		DisplayName string `json:"display_name"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.provider.SignInFederated(c.Request.Context(), input.Provider, input.Email, input.DisplayName, input.PhotoURL)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.coordinator.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// ContinueAsGuest keeps everything device-local.
func (h *AuthHandler) ContinueAsGuest(c *gin.Context) {
	h.coordinator.ContinueAsGuest()
	c.JSON(http.StatusOK, gin.H{"status": h.coordinator.Status().String()})
}

// Session reports the current identity and sync status.
func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"identity": h.coordinator.Identity(),
		"status":   h.coordinator.Status().String(),
	})
}

func (h *AuthHandler) Reload(c *gin.Context) {
	id, err := h.provider.Reload(c.Request.Context())
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

func (h *AuthHandler) SendVerification(c *gin.Context) {
	if err := h.provider.SendVerification(c.Request.Context()); err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification email sent"})
}

func (h *AuthHandler) ConfirmVerification(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.provider.ConfirmVerification(c.Request.Context(), input.Token)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrEmailInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrNotSignedIn):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process auth request"})
	}
}
