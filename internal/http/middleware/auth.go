package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/service"
)

const accountKey = "account"

// Auth validates the Authorization header and attaches the resolved
// account. Role and verification gates stay at the call sites; this layer
// only proves identity and liveness.
type Auth struct {
	AuthService *service.AuthService
}

// RequireAuth ensures the request carries a valid bearer token for an
// active account.
func (m *Auth) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}

	account, err := m.AuthService.Authenticate(c.Request.Context(), parts[1])
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Access token expired."})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}
	if !account.Active {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "inactive_account", "error_description": "Account is deactivated."})
		return
	}

	c.Set(accountKey, account)
	c.Next()
}

// GetAccount exposes the authenticated account to handlers.
func GetAccount(c *gin.Context) (domain.Account, bool) {
	value, ok := c.Get(accountKey)
	if !ok {
		return domain.Account{}, false
	}
	account, ok := value.(domain.Account)
	return account, ok
}
