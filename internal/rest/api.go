package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/dfryer1193/inkblog/api"
	"github.com/dfryer1193/inkblog/blog/application"
	"github.com/dfryer1193/inkblog/blog/cache"
	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/dfryer1193/inkblog/blog/render"
	"github.com/dfryer1193/inkblog/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CacheAdmin is the part of the page cache the HTTP layer drives directly
type CacheAdmin interface {
	InvalidatePost(ctx context.Context, slug string)
	Clear(ctx context.Context)
	Stats() cache.Stats
}

// URLBuilder makes links for API responses
type URLBuilder interface {
	URL(path string) string
	PostURL(slug string) string
}

// Services are the handlers' dependencies. Auth and Media may be nil: without Auth the
// admin routes are not registered, without Media the media routes are not.
type Services struct {
	Posts      *application.PostService
	Pages      *application.PageService
	Cache      CacheAdmin
	Media      *application.MediaService
	Auth       *application.AuthService
	URLs       URLBuilder
	UploadsDir string
}

type handlers struct {
	Services
}

func NewApi(router *gin.Engine, s Services) {
	h := &handlers{Services: s}

	router.GET("/healthz", h.Health)

	router.GET("/", h.IndexPage)
	router.GET("/post/:slug", h.PostPage)
	router.GET("/tag/:tag", h.TagPage)
	router.GET("/feed.json", h.Feed)
	router.GET(render.StylesheetPath, h.Stylesheet)
	if s.UploadsDir != "" {
		router.Static("/uploads", s.UploadsDir)
	}

	public := router.Group("/api")
	{
		public.GET("/posts", h.ListPosts)
		public.GET("/posts/:slug", h.GetPost)
	}

	if s.Auth == nil {
		log.Warn().Msg("Admin credentials are not configured, admin API disabled")
		return
	}

	router.POST("/admin/login", h.Login)
	public.POST("/invalidate", middleware.RequireBearer(s.Auth), h.Invalidate)

	admin := router.Group("/admin", middleware.RequireBearer(s.Auth))
	{
		admin.GET("/verify", h.Verify)

		admin.GET("/posts", h.AdminListPosts)
		admin.GET("/posts/:slug", h.AdminGetPost)
		admin.POST("/posts", h.CreatePost)
		admin.PUT("/posts/:slug", h.UpdatePost)
		admin.DELETE("/posts/:slug", h.DeletePost)

		admin.GET("/cache/stats", h.CacheStats)
		admin.POST("/cache/clear", h.ClearCache)

		if s.Media != nil {
			admin.POST("/media", h.UploadMedia)
			admin.GET("/media", h.ListMedia)
			admin.DELETE("/media/:name", h.DeleteMedia)
		}
	}
}

func (h *handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// errorStatus maps domain errors to HTTP status codes; anything unknown is a 500
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrPostNotFound),
		errors.Is(err, domain.ErrTagNotFound),
		errors.Is(err, domain.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPostExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidSlug),
		errors.Is(err, domain.ErrInvalidPost),
		errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.AbortWithStatusJSON(status, api.Error{Error: "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, api.Error{Error: err.Error()})
}

// writeLookupError answers 404 for anything that means the post cannot be shown
func writeLookupError(c *gin.Context, err error) {
	if application.IsNotFound(err) {
		c.AbortWithStatusJSON(http.StatusNotFound, api.Error{Error: err.Error()})
		return
	}
	writeError(c, err)
}
