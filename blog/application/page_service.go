package application

import (
	"context"
	"fmt"

	"github.com/dfryer1193/inkblog/blog/cache"
	"github.com/dfryer1193/inkblog/blog/domain"
)

// PageRenderer turns posts into complete documents
type PageRenderer interface {
	RenderIndex(posts []*domain.Post) (string, error)
	RenderPost(post *domain.Post) (string, error)
	RenderTag(tag string, posts []*domain.Post) (string, error)
	RenderFeed(posts []*domain.Post) (string, error)
}

// PageCache memoizes rendered pages by key
type PageCache interface {
	GetCached(ctx context.Context, key string, render cache.RenderFunc) (string, error)
}

// PageService serves rendered pages through the page cache
type PageService struct {
	posts    *PostService
	renderer PageRenderer
	pages    PageCache
}

func NewPageService(posts *PostService, renderer PageRenderer, pages PageCache) *PageService {
	return &PageService{
		posts:    posts,
		renderer: renderer,
		pages:    pages,
	}
}

// IndexPage returns the home page listing every post
func (s *PageService) IndexPage(ctx context.Context) (string, error) {
	return s.pages.GetCached(ctx, cache.IndexKey, func(ctx context.Context) (string, error) {
		posts, err := s.posts.LoadPosts(ctx)
		if err != nil {
			return "", err
		}
		return s.renderer.RenderIndex(posts)
	})
}

// PostPage returns the page of a single post. Missing posts are not cached.
func (s *PageService) PostPage(ctx context.Context, slug string) (string, error) {
	if !domain.ValidSlug(slug) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSlug, slug)
	}

	return s.pages.GetCached(ctx, cache.PostKey(slug), func(ctx context.Context) (string, error) {
		post, err := s.posts.GetPost(ctx, slug)
		if err != nil {
			return "", err
		}
		return s.renderer.RenderPost(post)
	})
}

// TagPage returns the listing of posts carrying tag; tag may be a name or its slug
func (s *PageService) TagPage(ctx context.Context, tag string) (string, error) {
	tagSlug := domain.Slugify(tag)

	return s.pages.GetCached(ctx, cache.TagKey(tagSlug), func(ctx context.Context) (string, error) {
		name, posts, err := s.posts.TagPosts(ctx, tagSlug)
		if err != nil {
			return "", err
		}
		return s.renderer.RenderTag(name, posts)
	})
}

// Feed returns the JSON feed of every post
func (s *PageService) Feed(ctx context.Context) (string, error) {
	return s.pages.GetCached(ctx, cache.FeedKey, func(ctx context.Context) (string, error) {
		posts, err := s.posts.LoadPosts(ctx)
		if err != nil {
			return "", err
		}
		return s.renderer.RenderFeed(posts)
	})
}
