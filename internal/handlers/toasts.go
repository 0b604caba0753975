package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liquid-tasks/internal/toast"
)

type ToastHandler struct {
	center *toast.Center
}

func NewToastHandler(center *toast.Center) *ToastHandler {
	return &ToastHandler{center: center}
}

func (h *ToastHandler) GetToasts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"toasts": h.center.Active()})
}

func (h *ToastHandler) DismissToast(c *gin.Context) {
	if !h.center.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "toast not found"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
