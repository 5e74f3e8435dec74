package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the AdminIdentity.
const IdentityKey = "admin"

// RequireAdmin enforces an admin session token taken from the token query
// parameter or a bearer Authorization header.
func RequireAdmin(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Authorize(TokenFromRequest(c))
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrUnauthorized) {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"detail": err.Error()})
			return
		}
		c.Set(IdentityKey, id)
		c.Next()
	}
}

// TokenFromRequest prefers ?token= and falls back to a bearer header.
func TokenFromRequest(c *gin.Context) string {
	if tok := strings.TrimSpace(c.Query("token")); tok != "" {
		return tok
	}
	authz := c.GetHeader("Authorization")
	if len(authz) > len("bearer ") && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
