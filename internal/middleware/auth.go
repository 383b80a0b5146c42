package middleware

import (
	"context"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

const (
	// SessionTokenKey is where login stores the token in the cookie session.
	SessionTokenKey = "token"

	identityKey = "identity"
)

// Authenticator resolves a raw token to the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Identity, error)
}

// TokenFromRequest reads the session cookie first, then the Authorization
// header with or without a "Bearer " prefix.
func TokenFromRequest(c *gin.Context) string {
	if v, ok := sessions.Default(c).Get(SessionTokenKey).(string); ok && v != "" {
		return v
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return header
}

func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.Authenticate(c.Request.Context(), TokenFromRequest(c))
		if err != nil {
			c.AbortWithStatusJSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by AuthRequired.
func CurrentIdentity(c *gin.Context) (services.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return services.Identity{}, false
	}
	id, ok := v.(services.Identity)
	return id, ok
}
