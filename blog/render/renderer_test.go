package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, baseURL string) *Renderer {
	t.Helper()
	r, err := NewRenderer(Site{Title: "Test Blog", Description: "Notes and essays", BaseURL: baseURL})
	require.NoError(t, err)
	return r
}

func testPosts() []*domain.Post {
	return []*domain.Post{
		{
			Slug:        "alpha",
			Title:       "Alpha Post",
			Date:        "2024-02-01",
			PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			Tags:        []string{"Go", "Caching"},
			Excerpt:     "First excerpt",
			Content:     "<p>First body</p>",
		},
		{
			Slug:        "beta",
			Title:       "Beta Post",
			Date:        "2024-01-01",
			PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Excerpt:     "Second excerpt",
			Content:     "<p>Second body</p>",
		},
		{
			Slug:    "gamma",
			Title:   "Gamma Post",
			Date:    "someday",
			Excerpt: "Third excerpt",
			Content: "<p>Third body</p>",
		},
	}
}

func TestRenderIndex_EachPostOnceInOrder(t *testing.T) {
	r := newTestRenderer(t, "")
	posts := testPosts()

	html, err := r.RenderIndex(posts)
	require.NoError(t, err)

	last := -1
	for _, post := range posts {
		link := `href="/post/` + post.Slug + `"`
		assert.Equal(t, 1, strings.Count(html, post.Title), "title %q", post.Title)
		assert.Equal(t, 1, strings.Count(html, link), "link %q", link)

		pos := strings.Index(html, link)
		assert.Greater(t, pos, last, "post %q out of order", post.Slug)
		last = pos
	}

	assert.Contains(t, html, "<title>Test Blog</title>")
	assert.Contains(t, html, "First excerpt")
	assert.Contains(t, html, `href="/tag/go"`)
	assert.Contains(t, html, "February 1, 2024")
	assert.Contains(t, html, "someday")
	assert.NotContains(t, html, "First body", "index shows excerpts only")
}

func TestRenderIndex_Deterministic(t *testing.T) {
	r := newTestRenderer(t, "")

	first, err := r.RenderIndex(testPosts())
	require.NoError(t, err)
	second, err := r.RenderIndex(testPosts())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderIndex_Empty(t *testing.T) {
	r := newTestRenderer(t, "")

	html, err := r.RenderIndex(nil)
	require.NoError(t, err)
	assert.Contains(t, html, "No posts yet.")
}

func TestRenderIndex_BaseURL(t *testing.T) {
	r := newTestRenderer(t, "https://blog.example.com/")

	html, err := r.RenderIndex(testPosts())
	require.NoError(t, err)
	assert.Contains(t, html, `href="https://blog.example.com/post/alpha"`)
	assert.Contains(t, html, `href="https://blog.example.com/tag/caching"`)
	assert.Contains(t, html, `href="https://blog.example.com`+StylesheetPath+`"`)
}

func TestStylesheet(t *testing.T) {
	css := string(Stylesheet)
	for _, class := range []string{".site-header", ".post-summary", ".tags", ".post-content"} {
		assert.Contains(t, css, class)
	}
}

func TestRenderPost(t *testing.T) {
	r := newTestRenderer(t, "")
	post := testPosts()[0]

	html, err := r.RenderPost(post)
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Alpha Post - Test Blog</title>")
	assert.Contains(t, html, `<meta name="description" content="First excerpt">`)
	assert.Contains(t, html, "<h1>Alpha Post</h1>")
	assert.Contains(t, html, "<p>First body</p>", "content is emitted unescaped")
	assert.Contains(t, html, `datetime="2024-02-01"`)
	assert.Contains(t, html, `href="/tag/go"`)
}

func TestRenderPost_EscapesMetadata(t *testing.T) {
	r := newTestRenderer(t, "")
	post := &domain.Post{
		Slug:    "xss",
		Title:   "<script>alert(1)</script>",
		Date:    "2024-01-01",
		Content: "<p>ok</p>",
	}

	html, err := r.RenderPost(post)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderPost_Nil(t *testing.T) {
	r := newTestRenderer(t, "")

	_, err := r.RenderPost(nil)
	assert.Error(t, err)
}

func TestRenderTag(t *testing.T) {
	r := newTestRenderer(t, "")

	html, err := r.RenderTag("Go", testPosts()[:1])
	require.NoError(t, err)
	assert.Contains(t, html, "<title>Posts tagged Go - Test Blog</title>")
	assert.Contains(t, html, `href="/post/alpha"`)
	assert.NotContains(t, html, `href="/post/beta"`)
}

func TestRenderFeed(t *testing.T) {
	r := newTestRenderer(t, "https://blog.example.com")

	out, err := r.RenderFeed(testPosts())
	require.NoError(t, err)

	var feed jsonFeed
	require.NoError(t, json.Unmarshal([]byte(out), &feed))

	assert.Equal(t, jsonFeedVersion, feed.Version)
	assert.Equal(t, "Test Blog", feed.Title)
	assert.Equal(t, "https://blog.example.com/feed.json", feed.FeedURL)
	require.Len(t, feed.Items, 3)
	assert.Equal(t, "https://blog.example.com/post/alpha", feed.Items[0].URL)
	assert.Equal(t, "2024-02-01T00:00:00Z", feed.Items[0].DatePublished)
	assert.Equal(t, []string{"Go", "Caching"}, feed.Items[0].Tags)
	assert.Empty(t, feed.Items[2].DatePublished)
}
