package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/studio-booking-backend/internal/user"
)

// Actor is the caller of a lifecycle operation.
type Actor struct {
	UserID string
	Role   user.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == user.RoleAdmin
}

// IsPhotographer reports whether the actor is the given photographer acting as themself.
func (a Actor) IsPhotographer(photographerID string) bool {
	return a.Role == user.RolePhotographer && a.UserID == photographerID
}

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRole returns the authenticated user's role or empty string.
func GetRole(c *gin.Context) user.Role {
	if v, ok := c.Get("userRole"); ok {
		if s, ok := v.(string); ok {
			return user.Role(s)
		}
	}
	return ""
}

// GetActor returns the authenticated caller.
func GetActor(c *gin.Context) Actor {
	return Actor{UserID: GetUserID(c), Role: GetRole(c)}
}
