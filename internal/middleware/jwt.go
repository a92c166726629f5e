package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-live/backend/internal/auth"
	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := bearer(header)
		if !ok {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT sets user claims when a valid bearer token is present and lets
// anonymous requests through. A malformed or invalid token is still rejected.
func OptionalJWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := bearer(header)
		if !ok {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return models.Actor{}, false
	}
	id, _ := v.(string)
	if id == "" {
		return models.Actor{}, false
	}
	role, _ := c.Get(ContextUserRole)
	r, _ := role.(models.Role)
	return models.Actor{UserID: id, Role: r}, true
}

func bearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
}
