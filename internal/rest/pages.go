package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dfryer1193/inkblog/blog/application"
	"github.com/dfryer1193/inkblog/blog/render"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	htmlContentType = "text/html; charset=utf-8"
	feedContentType = "application/feed+json; charset=utf-8"
	cssContentType  = "text/css; charset=utf-8"
)

func (h *handlers) IndexPage(c *gin.Context) {
	page, err := h.Pages.IndexPage(c.Request.Context())
	h.writePage(c, htmlContentType, page, err)
}

func (h *handlers) PostPage(c *gin.Context) {
	page, err := h.Pages.PostPage(c.Request.Context(), c.Param("slug"))
	h.writePage(c, htmlContentType, page, err)
}

func (h *handlers) TagPage(c *gin.Context) {
	page, err := h.Pages.TagPage(c.Request.Context(), c.Param("tag"))
	h.writePage(c, htmlContentType, page, err)
}

func (h *handlers) Feed(c *gin.Context) {
	feed, err := h.Pages.Feed(c.Request.Context())
	h.writePage(c, feedContentType, feed, err)
}

func (h *handlers) Stylesheet(c *gin.Context) {
	h.writePage(c, cssContentType, string(render.Stylesheet), nil)
}

// writePage sends a rendered page with an ETag, answering 304 when the client has it
func (h *handlers) writePage(c *gin.Context, contentType, page string, err error) {
	if err != nil {
		if application.IsNotFound(err) {
			c.Data(http.StatusNotFound, "text/plain; charset=utf-8", []byte(http.StatusText(http.StatusNotFound)))
			return
		}
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Failed to render page")
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(http.StatusText(http.StatusInternalServerError)))
		return
	}

	etag := pageETag(page)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, contentType, []byte(page))
}

func pageETag(page string) string {
	return `"` + strconv.FormatUint(xxhash.Sum64String(page), 16) + `"`
}

// etagMatches implements the weak comparison If-None-Match uses
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
