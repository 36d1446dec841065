package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/rs/zerolog/log"
)

// ManifestFile records, inside the output directory, what the last build wrote
const ManifestFile = ".build-manifest.json"

// BuildResult counts what a static build wrote
type BuildResult struct {
	Posts int
	// Skipped counts post pages left in place because their source did not change.
	Skipped int
	Tags    int
	Media   int
}

type buildManifest struct {
	// Posts maps each built slug to the modification time of its source
	Posts map[string]time.Time `json:"posts"`
	Tags  []string             `json:"tags"`
}

// BuildService writes the whole site as static files
type BuildService struct {
	posts    *PostService
	renderer PageRenderer
	mediaDir string
	assets   map[string][]byte
	full     bool
}

func NewBuildService(posts *PostService, renderer PageRenderer, mediaDir string) *BuildService {
	return &BuildService{
		posts:    posts,
		renderer: renderer,
		mediaDir: mediaDir,
		assets:   make(map[string][]byte),
	}
}

// WithAsset adds a fixed file written to path, relative to the output directory, on every build
func (b *BuildService) WithAsset(path string, content []byte) *BuildService {
	b.assets[path] = content
	return b
}

// WithFullRebuild makes Build render every post page even when its source is unchanged
func (b *BuildService) WithFullRebuild(full bool) *BuildService {
	b.full = full
	return b
}

// Build renders the index, the feed, every post and every tag page into outDir and
// copies uploaded media to outDir/uploads. Post pages whose source has not changed since
// the build recorded in the manifest are kept; pages of removed posts and tags are deleted.
func (b *BuildService) Build(ctx context.Context, outDir string) (BuildResult, error) {
	var result BuildResult

	posts, err := b.posts.LoadPosts(ctx)
	if err != nil {
		return result, err
	}

	previous := b.readManifest(outDir)
	manifest := buildManifest{Posts: make(map[string]time.Time, len(posts))}

	index, err := b.renderer.RenderIndex(posts)
	if err != nil {
		return result, err
	}
	if err := writePage(filepath.Join(outDir, "index.html"), index); err != nil {
		return result, err
	}

	feed, err := b.renderer.RenderFeed(posts)
	if err != nil {
		return result, err
	}
	if err := writePage(filepath.Join(outDir, "feed.json"), feed); err != nil {
		return result, err
	}

	seenTags := make(map[string]bool)
	var tagOrder []string
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		manifest.Posts[post.Slug] = post.ModTime
		pagePath := filepath.Join(outDir, "post", post.Slug, "index.html")
		if b.unchanged(previous, post, pagePath) {
			result.Skipped++
		} else {
			page, err := b.renderer.RenderPost(post)
			if err != nil {
				return result, err
			}
			if err := writePage(pagePath, page); err != nil {
				return result, err
			}
			result.Posts++
		}

		for _, tag := range post.Tags {
			tagSlug := domain.Slugify(tag)
			if !seenTags[tagSlug] {
				seenTags[tagSlug] = true
				tagOrder = append(tagOrder, tagSlug)
			}
		}
	}

	for _, tagSlug := range tagOrder {
		name, tagged, err := b.posts.TagPosts(ctx, tagSlug)
		if err != nil {
			return result, err
		}
		page, err := b.renderer.RenderTag(name, tagged)
		if err != nil {
			return result, err
		}
		if err := writePage(filepath.Join(outDir, "tag", tagSlug, "index.html"), page); err != nil {
			return result, err
		}
		result.Tags++
	}
	manifest.Tags = tagOrder

	for path, content := range b.assets {
		if err := writePage(filepath.Join(outDir, filepath.FromSlash(path)), string(content)); err != nil {
			return result, err
		}
	}

	if err := removeStale(outDir, previous, manifest); err != nil {
		return result, err
	}

	copied, err := copyDir(b.mediaDir, filepath.Join(outDir, "uploads"))
	if err != nil {
		return result, fmt.Errorf("failed to copy media: %w", err)
	}
	result.Media = copied

	if err := writeManifest(outDir, manifest); err != nil {
		return result, err
	}

	log.Info().
		Int("posts", result.Posts).
		Int("skipped", result.Skipped).
		Int("tags", result.Tags).
		Int("media", result.Media).
		Str("output", outDir).
		Msg("Built static site")

	return result, nil
}

func (b *BuildService) unchanged(previous buildManifest, post *domain.Post, pagePath string) bool {
	if b.full || post.ModTime.IsZero() {
		return false
	}
	built, ok := previous.Posts[post.Slug]
	if !ok || !built.Equal(post.ModTime) {
		return false
	}
	_, err := os.Stat(pagePath)
	return err == nil
}

// readManifest returns the manifest of the last build; a missing or unreadable one is empty
func (b *BuildService) readManifest(outDir string) buildManifest {
	var m buildManifest
	raw, err := os.ReadFile(filepath.Join(outDir, ManifestFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("Failed to read build manifest, rebuilding everything")
		}
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		log.Warn().Err(err).Msg("Ignoring corrupt build manifest, rebuilding everything")
		return buildManifest{}
	}
	return m
}

func writeManifest(outDir string, m buildManifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode build manifest: %w", err)
	}
	return writePage(filepath.Join(outDir, ManifestFile), string(raw))
}

// removeStale deletes the pages of posts and tags the previous build wrote that are gone now
func removeStale(outDir string, previous, current buildManifest) error {
	var stale []string
	for slug := range previous.Posts {
		if _, ok := current.Posts[slug]; !ok && domain.ValidSlug(slug) {
			stale = append(stale, filepath.Join(outDir, "post", slug))
		}
	}
	kept := make(map[string]bool, len(current.Tags))
	for _, tag := range current.Tags {
		kept[tag] = true
	}
	for _, tag := range previous.Tags {
		if !kept[tag] && domain.ValidSlug(tag) {
			stale = append(stale, filepath.Join(outDir, "tag", tag))
		}
	}

	sort.Strings(stale)
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove stale page %s: %w", dir, err)
		}
		log.Debug().Str("path", dir).Msg("Removed stale page")
	}
	return nil
}

func writePage(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// copyDir copies the regular files under src into dst. A missing src copies nothing.
func copyDir(src, dst string) (int, error) {
	if src == "" {
		return 0, nil
	}
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(dst, rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
