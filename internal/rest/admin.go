package rest

import (
	"net/http"
	"time"

	"github.com/dfryer1193/inkblog/api"
	"github.com/dfryer1193/inkblog/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *handlers) Login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}

	token, expiresAt, err := h.Auth.Login(req.Username, req.Password)
	if err != nil {
		log.Warn().Str("username", req.Username).Str("client_ip", c.ClientIP()).Msg("Failed admin login")
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify answers 200 for a token that still passes RequireBearer
func (h *handlers) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, api.VerifyResponse{Valid: true, Username: c.GetString(middleware.AdminKey)})
}

func (h *handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, api.NewCacheStats(h.Cache.Stats()))
}

func (h *handlers) ClearCache(c *gin.Context) {
	h.Cache.Clear(c.Request.Context())
	log.Info().Str("admin", c.GetString(middleware.AdminKey)).Msg("Cleared page cache")
	c.Status(http.StatusNoContent)
}
