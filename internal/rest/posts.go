package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/dfryer1193/inkblog/api"
	"github.com/dfryer1193/inkblog/blog/application"
	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/dfryer1193/inkblog/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *handlers) ListPosts(c *gin.Context) {
	posts, err := h.Posts.LoadPosts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.NewPosts(posts, h.URLs.PostURL))
}

func (h *handlers) GetPost(c *gin.Context) {
	post, err := h.Posts.GetPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.postDetail(post, false))
}

func (h *handlers) Invalidate(c *gin.Context) {
	var req api.InvalidateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	if req.Slug == "" {
		h.Cache.Clear(ctx)
	} else {
		if !domain.ValidSlug(req.Slug) {
			c.JSON(http.StatusBadRequest, api.Error{Error: "invalid slug"})
			return
		}
		h.Cache.InvalidatePost(ctx, req.Slug)
	}

	log.Info().Str("slug", req.Slug).Msg("Invalidated cached pages")
	c.JSON(http.StatusOK, gin.H{"invalidated": true, "slug": req.Slug})
}

func (h *handlers) AdminListPosts(c *gin.Context) {
	h.ListPosts(c)
}

func (h *handlers) AdminGetPost(c *gin.Context) {
	post, err := h.Posts.GetPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.postDetail(post, true))
}

func (h *handlers) CreatePost(c *gin.Context) {
	var proto api.PostProto
	if err := c.ShouldBindJSON(&proto); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}

	post, err := h.Posts.CreatePost(c.Request.Context(), postInput(proto))
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("slug", post.Slug).Str("admin", c.GetString(middleware.AdminKey)).Msg("Created post")
	c.Header("Location", h.URLs.PostURL(post.Slug))
	c.JSON(http.StatusCreated, h.postDetail(post, true))
}

func (h *handlers) UpdatePost(c *gin.Context) {
	var proto api.PostProto
	if err := c.ShouldBindJSON(&proto); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}

	post, err := h.Posts.UpdatePost(c.Request.Context(), c.Param("slug"), postInput(proto))
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("slug", post.Slug).Str("admin", c.GetString(middleware.AdminKey)).Msg("Updated post")
	c.JSON(http.StatusOK, h.postDetail(post, true))
}

func (h *handlers) DeletePost(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.Posts.DeletePost(c.Request.Context(), slug); err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("slug", slug).Str("admin", c.GetString(middleware.AdminKey)).Msg("Deleted post")
	c.Status(http.StatusNoContent)
}

func (h *handlers) postDetail(post *domain.Post, withMarkdown bool) api.PostDetail {
	detail := api.PostDetail{
		Post:    api.NewPost(post, h.URLs.PostURL(post.Slug)),
		Content: post.Content,
	}
	if withMarkdown {
		detail.Markdown = post.Markdown
	}
	return detail
}

func postInput(proto api.PostProto) application.PostInput {
	return application.PostInput{
		Slug:  proto.Slug,
		Title: proto.Title,
		Date:  proto.Date,
		Tags:  proto.Tags,
		Body:  proto.Content,
	}
}
