package api

import (
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
)

// Post is a post as listed by the public and admin APIs
type Post struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Excerpt string   `json:"excerpt"`
	URL     string   `json:"url"`
}

// PostDetail adds the rendered content and, for the admin API, the markdown source
type PostDetail struct {
	Post
	Content  string `json:"content"`
	Markdown string `json:"markdown,omitempty"`
}

// PostProto is the body of create and update requests
type PostProto struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title" binding:"required"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
}

// InvalidateRequest names the post whose pages should be dropped; empty drops the listings only
type InvalidateRequest struct {
	Slug string `json:"slug"`
}

type Error struct {
	Error string `json:"error"`
}

func NewPost(p *domain.Post, url string) Post {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return Post{
		Slug:    p.Slug,
		Title:   p.Title,
		Date:    p.Date,
		Tags:    tags,
		Excerpt: p.Excerpt,
		URL:     url,
	}
}

func NewPosts(posts []*domain.Post, url func(slug string) string) []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPost(p, url(p.Slug)))
	}
	return out
}

// Time formats t for JSON responses
func Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
