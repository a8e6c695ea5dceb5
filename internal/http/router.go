// Package http wires the gin router.
package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Gauravpathak1789/Bookly/internal/config"
	"github.com/Gauravpathak1789/Bookly/internal/http/handler"
	httpmiddleware "github.com/Gauravpathak1789/Bookly/internal/http/middleware"
	"github.com/Gauravpathak1789/Bookly/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, bookHandler *handler.BookHandler, oauthHandler *handler.OAuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authMiddleware.RequireAuth, authHandler.Logout)

		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-verification", authHandler.ResendVerification)

		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/change-password", authMiddleware.RequireAuth, authHandler.ChangePassword)

		auth.GET("/me", authMiddleware.RequireAuth, authHandler.Me)
		auth.GET("/users/:id", authMiddleware.RequireAuth, authHandler.GetUser)

		admin := auth.Group("/admin", authMiddleware.RequireAuth)
		{
			admin.GET("/users", authHandler.ListUsers)
			admin.PATCH("/users/:id/role", authHandler.SetRole)
			admin.PATCH("/users/:id/deactivate", authHandler.Deactivate)
		}
	}

	books := r.Group("/books", authMiddleware.RequireAuth)
	{
		books.GET("", bookHandler.List)
		books.GET("/:id", bookHandler.Get)
		books.POST("", bookHandler.Create)
		books.PATCH("/:id", bookHandler.Patch)
		books.DELETE("/:id", bookHandler.Delete)
	}

	oauth := r.Group("/oauth")
	{
		oauth.GET("/github/login", oauthHandler.GitHubLogin)
		oauth.GET("/github/callback", oauthHandler.GitHubCallback)
	}

	return r
}
