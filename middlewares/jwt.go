// Package middlewares holds the gin middleware for authentication, role
// gating and the request audit trail.
package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"posescope/utils"
)

const (
	// ContextUserID is the authenticated user's id on the gin context.
	ContextUserID = "user_id"
	// ContextRole is the authenticated user's role on the gin context.
	ContextRole = "role"
)

func extractToken(c *gin.Context) string {
	bearer := c.GetHeader("Authorization")
	if strings.HasPrefix(bearer, "Bearer ") {
		return strings.TrimPrefix(bearer, "Bearer ")
	}
	return c.GetHeader("x-access-token")
}

// JwtAuthMiddleware rejects requests without a valid token and stores the
// verified user id and role on the context. Role checks happen here, before
// the lifecycle engine is ever invoked; the engine assumes an authorized actor.
func JwtAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		userID, role, err := utils.ParseToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireRole allows only the listed roles past.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// CurrentUserID returns the authenticated user id from the context.
func CurrentUserID(c *gin.Context) uint {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}
