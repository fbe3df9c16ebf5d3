package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

const userKey = "user"

// AuthMiddleware resolves the bearer token to a user or aborts with 401.
func AuthMiddleware(verifier core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := signal.BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate user"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func MustUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}
