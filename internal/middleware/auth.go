package middleware

import (
	"net/http"
	"strings"

	"github.com/dfryer1193/inkblog/api"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminKey is the gin context key holding the authenticated admin name
const AdminKey = "admin"

// TokenVerifier checks a bearer token and returns the name it was issued to
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer <token>" header
func RequireBearer(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.Error{Error: "missing bearer token"})
			return
		}

		subject, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected admin token")
			c.Header("WWW-Authenticate", `Bearer realm="admin", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.Error{Error: "invalid or expired token"})
			return
		}

		c.Set(AdminKey, subject)
		c.Next()
	}
}
