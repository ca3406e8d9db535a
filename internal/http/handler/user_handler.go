package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/http/middleware"
	"github.com/craftlab/canvas-gateway/internal/service"
)

// UserHandler serves profile endpoints for the authenticated user.
type UserHandler struct {
	Users  *service.UserService
	Logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{Users: users, Logger: logger}
}

// Profile returns the caller's profile.
func (h *UserHandler) Profile(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential"})
		return
	}

	fresh, err := h.Users.Profile(c.Request.Context(), user.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": profileView(fresh)})
}

// UpdateProfile applies partial edits to the caller's profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential"})
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
		Image *string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}

	updated, err := h.Users.UpdateProfile(c.Request.Context(), user.ID, domain.ProfileUpdate{
		DisplayName: req.Name,
		Email:       req.Email,
		AvatarURL:   req.Image,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": profileView(updated)})
}

func profileView(user domain.UserIdentity) gin.H {
	return gin.H{
		"id":         user.ID,
		"name":       user.DisplayName,
		"email":      user.Email,
		"image":      user.AvatarURL,
		"loginCount": user.LoginCount,
		"loginLogs":  user.LoginLog,
	}
}

func (h *UserHandler) renderError(c *gin.Context, err error) {
	var apiErr *service.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"success": false, "message": apiErr.Message})
		return
	}
	h.Logger.Error("user request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"message": "Internal server error!",
		"error":   err.Error(),
	})
}
