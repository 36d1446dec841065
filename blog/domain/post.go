package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrPostExists   = errors.New("post already exists")
	ErrInvalidSlug  = errors.New("invalid post slug")
	ErrInvalidPost  = errors.New("invalid post")
	ErrTagNotFound  = errors.New("tag not found")
)

// Post represents a blog post.
// A post is created from a Markdown file named <slug>.md; Content holds the rendered HTML.
type Post struct {
	Slug    string
	Title   string
	Date    string
	Tags    []string
	Excerpt string
	Content string

	// Markdown is the body below the frontmatter block.
	Markdown string
	// PublishedAt is Date parsed; zero when Date could not be parsed.
	PublishedAt time.Time
	// ModTime is when the source file last changed.
	ModTime time.Time
}

// PostFile is the raw source of a post as read from storage.
type PostFile struct {
	Slug    string
	Content []byte
	ModTime time.Time
}

// PostStore holds the markdown sources of posts.
type PostStore interface {
	// ListPostFiles returns every post source, ordered by file name.
	ListPostFiles(ctx context.Context) ([]*PostFile, error)
	GetPostFile(ctx context.Context, slug string) (*PostFile, error)
	WritePostFile(ctx context.Context, slug string, content []byte) error
	DeletePostFile(ctx context.Context, slug string) error
	Exists(ctx context.Context, slug string) (bool, error)
}

// PageInvalidator is notified whenever post sources change.
type PageInvalidator interface {
	InvalidateIndex(ctx context.Context)
	InvalidatePost(ctx context.Context, slug string)
}
