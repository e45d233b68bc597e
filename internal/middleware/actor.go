package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	actorIDHeader   = "X-Actor-ID"
	actorRoleHeader = "X-Actor-Role"

	actorKey = "actor"
)

// Role is the kind of authenticated actor.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDriver   Role = "driver"
	RoleTraveler Role = "traveler"
)

// Actor is the caller identity asserted by the upstream gateway.
type Actor struct {
	ID   string
	Role Role
}

// ActorMiddleware reads the actor headers. Identity is verified upstream and trusted here.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor{
			ID:   c.GetHeader(actorIDHeader),
			Role: Role(c.GetHeader(actorRoleHeader)),
		}

		switch actor.Role {
		case RoleAdmin, RoleDriver, RoleTraveler:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid X-Actor-Role header, expected admin, driver or traveler",
			})
			return
		}

		if actor.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Actor-ID header"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole rejects actors whose role is not in roles.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if ok {
			for _, r := range roles {
				if actor.Role == r {
					c.Next()
					return
				}
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not allowed for this operation"})
	}
}

// ActorFrom returns the actor stored by ActorMiddleware.
func ActorFrom(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}
