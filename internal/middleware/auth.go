package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/access"
)

const actorContextKey = "actor"

// TokenVerifier turns a bearer token into an actor.
type TokenVerifier interface {
	Verify(token string) (access.Actor, error)
}

// AuthMiddleware resolves the caller from the Authorization header or the
// token query parameter. Requests without credentials continue as anonymous;
// the operations decide whether that is allowed. Invalid credentials are
// rejected outright.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}
		if !present {
			c.Set(actorContextKey, access.Anonymous())
			c.Next()
			return
		}

		actor, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func extractToken(c *gin.Context) (token string, present, ok bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", true, false
		}
		return strings.TrimSpace(parts[1]), true, true
	}
	if token := c.Query("token"); token != "" {
		return token, true, true
	}
	return "", false, true
}

// SetActor stores the acting identity on the request context.
func SetActor(c *gin.Context, actor access.Actor) {
	c.Set(actorContextKey, actor)
}

// ActorFromContext returns the actor set by AuthMiddleware, or anonymous.
func ActorFromContext(c *gin.Context) access.Actor {
	if val, ok := c.Get(actorContextKey); ok {
		if actor, ok := val.(access.Actor); ok {
			return actor
		}
	}
	return access.Anonymous()
}
