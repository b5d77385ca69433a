package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/utils"
)

const bearerPrefix = "Bearer "

// IdentityMiddleware reads the caller claims from the bearer token the gate
// has already verified. Requests without a token pass through anonymously.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(auth, bearerPrefix) {
			unauthorized(c)
			return
		}
		token := strings.TrimSpace(auth[len(bearerPrefix):])

		identity, err := utils.ParseIdentityToken(token)
		if err != nil {
			unauthorized(c)
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetIdentityInContext(ctx, identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireIdentity rejects requests that reached it without an identity.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetIdentityFromContext(c.Request.Context()); !ok {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
}
