package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache page not found")

const (
	IndexKey = "index"
	FeedKey  = "feed"

	postKeyPrefix = "post-"
	tagKeyPrefix  = "tag-"
)

// PostKey is the cache key of a post page
func PostKey(slug string) string {
	return postKeyPrefix + slug
}

// TagKey is the cache key of a tag listing page
func TagKey(tagSlug string) string {
	return tagKeyPrefix + tagSlug
}

// Page is a rendered document held by a backing store
type Page struct {
	Body string
	// UpdatedAt is when the page was stored; zero when the store does not track it.
	UpdatedAt time.Time
}

// Store is a backing store for rendered pages.
// Deleting a key that does not exist is not an error.
type Store interface {
	Get(ctx context.Context, key string) (Page, error)
	Put(ctx context.Context, key string, body string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix; "" removes everything.
	DeletePrefix(ctx context.Context, prefix string) error
}
