package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/craftlab/canvas-gateway/internal/config"
	"github.com/craftlab/canvas-gateway/internal/http/handler"
	httpmiddleware "github.com/craftlab/canvas-gateway/internal/http/middleware"
	"github.com/craftlab/canvas-gateway/internal/middleware"
	"github.com/craftlab/canvas-gateway/internal/proxy"
)

// NewRouter wires Gin routes and middleware. Upstream services hang off
// the NoRoute fallback behind authentication, so the gateway's own
// endpoints always win route resolution.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, userHandler *handler.UserHandler, authMiddleware *httpmiddleware.Auth, table *proxy.Table, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/google-login", authHandler.GoogleLogin)
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/verify", authHandler.VerifyEmail)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
	}

	users := r.Group("/v1/users", authMiddleware.RequireUser)
	{
		users.GET("/profile", userHandler.Profile)
		users.POST("/update-profile", userHandler.UpdateProfile)
	}

	r.NoRoute(authMiddleware.RequireUser, table.Handle)

	return r
}
