package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxMediaSize is the upload limit when none is configured
const DefaultMaxMediaSize int64 = 10 << 20

// mediaTypes maps the accepted upload extensions to the content type they are served with
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".avif": "image/avif",
	".pdf":  "application/pdf",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
}

type MediaService struct {
	repo    domain.MediaRepository
	maxSize int64
	now     func() time.Time
	newName func(ext string) string
}

func NewMediaService(repo domain.MediaRepository, maxSize int64) *MediaService {
	if maxSize <= 0 {
		maxSize = DefaultMaxMediaSize
	}
	return &MediaService{
		repo:    repo,
		maxSize: maxSize,
		now:     time.Now,
		newName: func(ext string) string {
			return uuid.NewString() + ext
		},
	}
}

// MaxSize is the largest accepted upload in bytes
func (s *MediaService) MaxSize() int64 {
	return s.maxSize
}

// Upload stores a file under a generated name. Content that was uploaded before is not
// stored twice; the existing record is returned instead.
func (s *MediaService) Upload(ctx context.Context, originalName string, content []byte) (*domain.Media, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	contentType, ok := mediaTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMedia, filepath.Base(originalName))
	}
	if int64(len(content)) > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrMediaTooLarge, len(content))
	}

	hash := calculateHash(content)
	existing, err := s.repo.FindByHash(ctx, hash)
	if err == nil {
		log.Debug().Str("name", existing.Name).Str("hash", hash).Msg("Media already uploaded")
		return existing, nil
	}
	if !errors.Is(err, domain.ErrMediaNotFound) {
		return nil, fmt.Errorf("failed to look up media by hash: %w", err)
	}

	now := s.now()
	m := &domain.Media{
		Name:         s.newName(ext),
		OriginalName: filepath.Base(originalName),
		Hash:         hash,
		ContentType:  contentType,
		Size:         int64(len(content)),
		Content:      content,
		UpdatedAt:    now,
		CreatedAt:    now,
	}
	if err := s.repo.SaveMedia(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save media %s: %w", m.OriginalName, err)
	}

	log.Info().Str("name", m.Name).Str("original", m.OriginalName).Int64("size", m.Size).Msg("Stored media")
	return m, nil
}

func (s *MediaService) List(ctx context.Context, limit, offset int) ([]*domain.Media, error) {
	return s.repo.ListMedia(ctx, limit, offset)
}

func (s *MediaService) Get(ctx context.Context, name string) (*domain.Media, error) {
	return s.repo.GetMedia(ctx, name)
}

func (s *MediaService) Delete(ctx context.Context, name string) error {
	return s.repo.DeleteMedia(ctx, name)
}

// isMediaFile reports whether path has an extension accepted for upload
func isMediaFile(path string) bool {
	_, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// calculateHash returns the hex-encoded SHA-256 of content
func calculateHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
