package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrMediaNotFound    = errors.New("media not found")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrMediaTooLarge    = errors.New("media exceeds the maximum upload size")
)

// Media represents an uploaded file served from the uploads directory
type Media struct {
	Name         string
	OriginalName string
	Hash         string
	ContentType  string
	Size         int64
	Content      []byte
	UpdatedAt    time.Time
	CreatedAt    time.Time
}

// MediaKind groups media by how a page embeds it
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// Kind derives the media kind from the content type
func (m *Media) Kind() MediaKind {
	switch {
	case strings.HasPrefix(m.ContentType, "image/"):
		return MediaImage
	case strings.HasPrefix(m.ContentType, "video/"):
		return MediaVideo
	default:
		return MediaDocument
	}
}

type MediaRepository interface {
	// SaveMedia saves a file to both filesystem and database
	SaveMedia(ctx context.Context, m *Media) error

	// GetMedia retrieves a media record from the database
	GetMedia(ctx context.Context, name string) (*Media, error)

	// FindByHash returns the media record with the given content hash, if any
	FindByHash(ctx context.Context, hash string) (*Media, error)

	// ListMedia returns media records, newest first
	ListMedia(ctx context.Context, limit, offset int) ([]*Media, error)

	// DeleteMedia removes a file from both filesystem and database
	DeleteMedia(ctx context.Context, name string) error
}
