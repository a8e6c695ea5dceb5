package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainoauth "github.com/Gauravpathak1789/Bookly/internal/domain/oauth"
	authsvc "github.com/Gauravpathak1789/Bookly/internal/service/auth"
)

// OAuthHandler exposes the GitHub federation endpoints.
type OAuthHandler struct {
	OAuth *authsvc.OAuthService
}

func NewOAuthHandler(oauth *authsvc.OAuthService) *OAuthHandler {
	return &OAuthHandler{OAuth: oauth}
}

// GitHubLogin starts the flow by redirecting to the provider.
func (h *OAuthHandler) GitHubLogin(c *gin.Context) {
	authURL, err := h.OAuth.StartLogin(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// GitHubCallback completes the flow and redirects to the frontend with the
// issued tokens as query parameters.
func (h *OAuthHandler) GitHubCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Missing code or state parameter."})
		return
	}

	redirect, err := h.OAuth.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

func (h *OAuthHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainoauth.ErrNotConfigured):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "not_configured", "error_description": "GitHub OAuth not configured."})
	case errors.Is(err, domainoauth.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state", "error_description": "Invalid state parameter."})
	case errors.Is(err, domainoauth.ErrExchangeFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "exchange_failed", "error_description": "Failed to exchange authorization code."})
	case errors.Is(err, domainoauth.ErrNoVerifiedEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_primary_email", "error_description": "No primary email found."})
	default:
		zap.L().Error("oauth handler failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}
