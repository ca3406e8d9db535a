package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/service"
)

// AuthHandler serves the credential endpoints the gateway terminates
// itself.
type AuthHandler struct {
	Auth   *service.AuthService
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger}
}

// GoogleLogin upserts a user from a provider profile payload. The
// provider subject id is accepted under either key the web client has
// historically sent.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req struct {
		ExternalID string `json:"externalId"`
		GoogleID   string `json:"googleId"`
		Email      string `json:"email"`
		Name       string `json:"name"`
		Image      string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "externalId and email are required"})
		return
	}
	externalID := req.ExternalID
	if externalID == "" {
		externalID = req.GoogleID
	}

	user, created, err := h.Auth.GoogleLogin(c.Request.Context(), externalID, req.Email, req.Name, req.Image)
	if err != nil {
		h.renderError(c, err)
		return
	}

	status := http.StatusOK
	message := "User logged in successfully"
	if created {
		status = http.StatusCreated
		message = "User created and logged in successfully"
	}
	c.JSON(status, gin.H{"success": true, "user": user, "message": message})
}

// Signup registers a local account and triggers email verification.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email and password are required"})
		return
	}

	user, err := h.Auth.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    user,
		"message": "Verification code sent",
	})
}

// VerifyEmail consumes a verification code.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email and code are required"})
		return
	}

	if err := h.Auth.VerifyEmail(c.Request.Context(), req.Email, req.Code); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified"})
}

// Login exchanges email/password for an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email and password are required"})
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      result.AccessToken,
		"expires_in": result.ExpiresIn,
		"user":       result.User,
	})
}

// ForgotPassword issues a password reset code.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email is required"})
		return
	}

	if err := h.Auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "If the email is registered, a reset code was sent"})
}

// ResetPassword installs a new credential after code verification.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email, code and password are required"})
		return
	}

	if err := h.Auth.ResetPassword(c.Request.Context(), req.Email, req.Code, req.Password); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated"})
}

func (h *AuthHandler) renderError(c *gin.Context, err error) {
	var apiErr *service.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"success": false, "message": apiErr.Message})
		return
	}
	h.Logger.Error("auth request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"message": "Internal server error!",
		"error":   err.Error(),
	})
}
