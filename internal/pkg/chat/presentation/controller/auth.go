package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bookmarket-chat/internal/infrastructure/auth"
)

const identityKey = "chat.identity"

// RequireAuth verifies the Bearer token on REST endpoints and stores the
// identity on the gin context. The socket endpoint authenticates on its own
// because the token travels as a query parameter there.
func RequireAuth(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// AuthedUserID returns the authenticated user's ID, or 0 when the request
// carries no verified identity.
func AuthedUserID(c *gin.Context) int64 {
	v, ok := c.Get(identityKey)
	if !ok {
		return 0
	}
	identity, ok := v.(*auth.Identity)
	if !ok {
		return 0
	}
	return identity.UserID
}
