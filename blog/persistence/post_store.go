package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/rs/zerolog/log"
)

var _ domain.PostStore = (*FilePostStore)(nil)

// FilePostStore implements domain.PostStore as one <slug>.md file per post in a directory
type FilePostStore struct {
	dir string
}

// NewFilePostStore creates a store rooted at dir. The directory is created on first write.
func NewFilePostStore(dir string) *FilePostStore {
	return &FilePostStore{
		dir: dir,
	}
}

// Dir returns the directory holding post sources
func (s *FilePostStore) Dir() string {
	return s.dir
}

// ListPostFiles reads every post source in the directory, ordered by file name (os.ReadDir sorts).
// A missing directory yields no posts; unreadable files are skipped.
func (s *FilePostStore) ListPostFiles(ctx context.Context) ([]*domain.PostFile, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []*domain.PostFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post directory: %w", err)
	}

	files := make([]*domain.PostFile, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		slug := domain.SlugFromFileName(e.Name())
		if slug == "" {
			if domain.IsPostFileName(e.Name()) {
				log.Warn().Str("file", e.Name()).Msg("Skipping post file whose name is not a valid slug")
			}
			continue
		}

		f, err := s.GetPostFile(ctx, slug)
		if err != nil {
			log.Warn().Err(err).Str("slug", slug).Msg("Skipping unreadable post file")
			continue
		}
		files = append(files, f)
	}

	return files, nil
}

// GetPostFile reads the source of a single post
func (s *FilePostStore) GetPostFile(_ context.Context, slug string) (*domain.PostFile, error) {
	path, err := s.path(slug)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat post file: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read post file %s: %w", slug, err)
	}

	return &domain.PostFile{
		Slug:    slug,
		Content: content,
		ModTime: info.ModTime(),
	}, nil
}

// WritePostFile creates or replaces the source of a post
func (s *FilePostStore) WritePostFile(_ context.Context, slug string, content []byte) error {
	path, err := s.path(slug)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create post directory: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial post
	tmp, err := os.CreateTemp(s.dir, "."+slug+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp post file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write post file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close post file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move post file into place: %w", err)
	}

	return nil
}

// DeletePostFile removes the source of a post
func (s *FilePostStore) DeletePostFile(_ context.Context, slug string) error {
	path, err := s.path(slug)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrPostNotFound, slug)
	}
	if err != nil {
		return fmt.Errorf("failed to remove post file: %w", err)
	}
	return nil
}

// Exists reports whether a post source exists for slug
func (s *FilePostStore) Exists(_ context.Context, slug string) (bool, error) {
	path, err := s.path(slug)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat post file: %w", err)
	}
	return true, nil
}

func (s *FilePostStore) path(slug string) (string, error) {
	if !domain.ValidSlug(slug) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSlug, slug)
	}
	return filepath.Join(s.dir, slug+domain.PostFileExt), nil
}
