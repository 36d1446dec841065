package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/rs/zerolog/log"
)

type PostService struct {
	store       domain.PostStore
	markdown    MarkdownRenderer
	invalidator domain.PageInvalidator
	now         func() time.Time
}

func NewPostService(store domain.PostStore, markdown MarkdownRenderer, invalidator domain.PageInvalidator) *PostService {
	return &PostService{
		store:       store,
		markdown:    markdown,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// LoadPosts parses every post source and returns the publishable posts, newest first.
// Posts without a title or date are skipped with a warning. Posts with equal dates keep
// file order, and posts whose date cannot be parsed sort last.
func (s *PostService) LoadPosts(ctx context.Context) ([]*domain.Post, error) {
	files, err := s.store.ListPostFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list post files: %w", err)
	}

	posts := make([]*domain.Post, 0, len(files))
	for _, f := range files {
		post, err := s.parsePost(f)
		if err != nil {
			log.Warn().Err(err).Str("slug", f.Slug).Msg("Skipping post")
			continue
		}
		posts = append(posts, post)
	}

	sortPosts(posts)
	return posts, nil
}

// GetPost returns a single parsed post
func (s *PostService) GetPost(ctx context.Context, slug string) (*domain.Post, error) {
	if !domain.ValidSlug(slug) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSlug, slug)
	}

	f, err := s.store.GetPostFile(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.parsePost(f)
}

// TagPosts returns the tag whose slug is tagSlug, as first written on the newest post
// carrying it, and the posts carrying it.
func (s *PostService) TagPosts(ctx context.Context, tagSlug string) (string, []*domain.Post, error) {
	posts, err := s.LoadPosts(ctx)
	if err != nil {
		return "", nil, err
	}

	var name string
	var tagged []*domain.Post
	for _, post := range posts {
		for _, tag := range post.Tags {
			if domain.Slugify(tag) != tagSlug {
				continue
			}
			if name == "" {
				name = tag
			}
			tagged = append(tagged, post)
			break
		}
	}

	if len(tagged) == 0 {
		return "", nil, fmt.Errorf("%w: %s", domain.ErrTagNotFound, tagSlug)
	}
	return name, tagged, nil
}

// CreatePost writes a new post. The slug is derived from the title unless given,
// and the date defaults to today.
func (s *PostService) CreatePost(ctx context.Context, in PostInput) (*domain.Post, error) {
	if in.Slug == "" {
		in.Slug = domain.Slugify(in.Title)
	}
	if in.Date == "" {
		in.Date = s.now().Format(dateLayout)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	exists, err := s.store.Exists(ctx, in.Slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check for post %s: %w", in.Slug, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostExists, in.Slug)
	}

	return s.write(ctx, in)
}

// UpdatePost replaces the content of an existing post. The slug cannot change;
// an empty date keeps the current one.
func (s *PostService) UpdatePost(ctx context.Context, slug string, in PostInput) (*domain.Post, error) {
	current, err := s.store.GetPostFile(ctx, slug)
	if err != nil {
		return nil, err
	}

	in.Slug = slug
	if in.Date == "" {
		fm, _ := SplitFrontmatter(current.Content)
		in.Date = fm.String("date")
	}
	if in.Date == "" {
		in.Date = s.now().Format(dateLayout)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	return s.write(ctx, in)
}

// DeletePost removes a post
func (s *PostService) DeletePost(ctx context.Context, slug string) error {
	if err := s.store.DeletePostFile(ctx, slug); err != nil {
		return err
	}
	s.invalidator.InvalidatePost(ctx, slug)
	return nil
}

func (s *PostService) write(ctx context.Context, in PostInput) (*domain.Post, error) {
	content := SerializePost(in)
	if err := s.store.WritePostFile(ctx, in.Slug, content); err != nil {
		return nil, fmt.Errorf("failed to write post %s: %w", in.Slug, err)
	}
	s.invalidator.InvalidatePost(ctx, in.Slug)

	return s.parsePost(&domain.PostFile{Slug: in.Slug, Content: content, ModTime: s.now()})
}

func (s *PostService) parsePost(f *domain.PostFile) (*domain.Post, error) {
	doc, err := s.markdown.Render(f.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to render post %s: %w", f.Slug, err)
	}

	title := doc.Frontmatter.String("title")
	date := doc.Frontmatter.String("date")
	if title == "" || date == "" {
		return nil, fmt.Errorf("%w: %s is missing a title or date", domain.ErrInvalidPost, f.Slug)
	}

	tags := doc.Frontmatter.Strings("tags")
	if tags == nil {
		tags = []string{}
	}
	publishedAt, _ := ParseDate(date)

	return &domain.Post{
		Slug:        f.Slug,
		Title:       title,
		Date:        date,
		Tags:        tags,
		Excerpt:     Excerpt(doc.HTML, DefaultExcerptLength),
		Content:     doc.HTML,
		Markdown:    string(doc.Markdown),
		PublishedAt: publishedAt,
		ModTime:     f.ModTime,
	}, nil
}

func validateInput(in PostInput) error {
	if !domain.ValidSlug(in.Slug) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSlug, in.Slug)
	}
	if singleLine(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidPost)
	}
	if _, ok := ParseDate(in.Date); !ok {
		return fmt.Errorf("%w: unrecognised date %q", domain.ErrInvalidPost, in.Date)
	}
	return nil
}

// sortPosts orders posts newest first. Undated posts go last and ties keep their order.
func sortPosts(posts []*domain.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}

// IsNotFound reports whether err means the requested post or tag does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrPostNotFound) ||
		errors.Is(err, domain.ErrTagNotFound) ||
		errors.Is(err, domain.ErrInvalidPost) ||
		errors.Is(err, domain.ErrInvalidSlug)
}
