package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/studio-booking-backend/internal/user"
)

// ActiveUserRequired validates the bearer token and then resolves the caller in the user directory.
// The directory role replaces the role claim. Unknown or deactivated users are rejected.
func ActiveUserRequired(jwtManager *JWTManager, users user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, jwtManager) {
			return
		}

		u, err := users.GetByID(c.Request.Context(), GetUserID(c))
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "user directory unavailable"})
			return
		}
		if !u.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			return
		}

		c.Set("userRole", string(u.Role))
		c.Next()
	}
}

// authenticate stores the token's identity in the context or aborts with 401.
func authenticate(c *gin.Context, jwtManager *JWTManager) bool {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return false
	}

	actor, err := jwtManager.Verify(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return false
	}

	c.Set("userID", actor.UserID)
	c.Set("userRole", string(actor.Role))
	return true
}
