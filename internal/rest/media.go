package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dfryer1193/inkblog/api"
	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/dfryer1193/inkblog/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	defaultMediaPageSize = 50
	maxMediaPageSize     = 200
)

func (h *handlers) UploadMedia(c *gin.Context) {
	maxSize := h.Media.MaxSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+(1<<20))

	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(c, fmt.Errorf("%w: over %d bytes", domain.ErrMediaTooLarge, maxSize))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: "multipart field \"file\" is required"})
		return
	}
	if header.Size > maxSize {
		writeError(c, fmt.Errorf("%w: %d bytes", domain.ErrMediaTooLarge, header.Size))
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		writeError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	m, err := h.Media.Upload(c.Request.Context(), header.Filename, content)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("name", m.Name).Str("admin", c.GetString(middleware.AdminKey)).Msg("Uploaded media")
	c.JSON(http.StatusCreated, api.NewMedia(m, h.mediaURL(m.Name)))
}

func (h *handlers) ListMedia(c *gin.Context) {
	limit := queryInt(c, "limit", defaultMediaPageSize)
	if limit <= 0 || limit > maxMediaPageSize {
		limit = defaultMediaPageSize
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, err := h.Media.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]api.Media, 0, len(items))
	for _, m := range items {
		out = append(out, api.NewMedia(m, h.mediaURL(m.Name)))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) DeleteMedia(c *gin.Context) {
	name := c.Param("name")
	if err := h.Media.Delete(c.Request.Context(), name); err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("name", name).Str("admin", c.GetString(middleware.AdminKey)).Msg("Deleted media")
	c.Status(http.StatusNoContent)
}

func (h *handlers) mediaURL(name string) string {
	return h.URLs.URL("/uploads/" + name)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
