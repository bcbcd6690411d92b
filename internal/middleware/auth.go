package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/natsukage/task-tracker-api/internal/constants"
	"github.com/natsukage/task-tracker-api/internal/database"
	apierrors "github.com/natsukage/task-tracker-api/internal/errors"
	"github.com/natsukage/task-tracker-api/internal/models"
	"github.com/natsukage/task-tracker-api/internal/services"
)

// SocketIDHeader names the realtime connection that issued the request, when
// the client has one open. It rides along on the published event so that
// connection does not receive an echo of its own action.
const SocketIDHeader = "X-Socket-ID"

// RequireAuth checks the session, loads the user row, and resolves the
// authenticated Actor (identity + admin capability) once for the request.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		rawUserID := session.Get(constants.ContextKeyUserID)

		userID, ok := toUserID(rawUserID)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var user models.User
		if err := database.GetDB().First(&user, userID).Error; err != nil {
			// Session refers to a user that no longer exists.
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		actor := services.Actor{
			ID:       user.ID,
			IsAdmin:  user.IsAdmin,
			SocketID: c.GetHeader(SocketIDHeader),
		}

		c.Set(constants.ContextKeyUserID, user.ID)
		c.Set(constants.ContextKeyActor, actor)
		c.Next()
	}
}

// RequireAdmin aborts the request unless the resolved actor is an admin.
// Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, exists := GetActor(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}
		if !actor.IsAdmin {
			apierrors.Forbidden(c, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetActor retrieves the resolved actor from context
func GetActor(c *gin.Context) (services.Actor, bool) {
	value, exists := c.Get(constants.ContextKeyActor)
	if !exists {
		return services.Actor{}, false
	}
	actor, ok := value.(services.Actor)
	return actor, ok
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return toUserID(userID)
}

func toUserID(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
