package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dfryer1193/inkblog/api"
	"github.com/dfryer1193/inkblog/blog/application"
	"github.com/dfryer1193/inkblog/blog/cache"
	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/dfryer1193/inkblog/blog/persistence"
	"github.com/dfryer1193/inkblog/blog/render"
	"github.com/dfryer1193/inkblog/shared/db/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUser     = "editor"
	testPassword = "correct horse battery staple"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

type testServer struct {
	router   *gin.Engine
	cache    *cache.PageCache
	postsDir string
}

func writePost(t *testing.T, dir, slug, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, slug+".md"), []byte(content), 0644))
}

func newTestServer(t *testing.T, withAdmin bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	postsDir := t.TempDir()
	writePost(t, postsDir, "older", "---\ntitle: Older Post\ndate: 2024-01-01\ntags: [\"Go\"]\n---\n\nThe older body.\n")
	writePost(t, postsDir, "newer", "---\ntitle: Newer Post\ndate: 2024-02-01\ntags: [\"Go\", \"Caching\"]\n---\n\nThe newer body.\n")

	renderer, err := render.NewRenderer(render.Site{Title: "Test Blog"})
	require.NoError(t, err)

	pages := cache.NewPageCache()
	posts := application.NewPostService(persistence.NewFilePostStore(postsDir), application.NewMarkdownRenderer(""), pages)

	s := Services{
		Posts: posts,
		Pages: application.NewPageService(posts, renderer, pages),
		Cache: pages,
		URLs:  renderer,
	}

	if withAdmin {
		database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: filepath.Join(t.TempDir(), "blog.db")})
		require.NoError(t, database.Connect(context.Background()))
		t.Cleanup(func() { database.Close() })

		uploads := t.TempDir()
		s.UploadsDir = uploads
		s.Media = application.NewMediaService(persistence.NewMediaRepository(database.DB(), uploads), 1024)

		auth, err := application.NewAuthService(application.AuthConfig{
			Username:   testUser,
			Password:   testPassword,
			Secret:     testSecret,
			BcryptCost: bcrypt.MinCost,
		})
		require.NoError(t, err)
		s.Auth = auth
	}

	router := gin.New()
	NewApi(router, s)
	return &testServer{router: router, cache: pages, postsDir: postsDir}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
		if headers == nil {
			headers = map[string]string{}
		}
		headers["Content-Type"] = "application/json"
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) map[string]string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/admin/login", api.LoginRequest{Username: testUser, Password: testPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.ExpiresAt)
	return map[string]string{"Authorization": "Bearer " + resp.Token}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, htmlContentType, w.Header().Get("Content-Type"))

	body := w.Body.String()
	newer := strings.Index(body, "Newer Post")
	older := strings.Index(body, "Older Post")
	require.NotEqual(t, -1, newer)
	require.NotEqual(t, -1, older)
	assert.Less(t, newer, older, "posts should be listed newest first")
	assert.Equal(t, 1, strings.Count(body, `href="/post/newer"`))

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = s.do(t, http.MethodGet, "/", nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	assert.EqualValues(t, 1, s.cache.Stats().Renders)
}

func TestPostPage(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/post/newer", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The newer body.")

	for _, path := range []string{"/post/missing", "/post/bad%20slug", "/post/.hidden"} {
		w = s.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	assert.Equal(t, 1, s.cache.Stats().Entries, "missing posts are not cached")
}

func TestPostPage_InvalidPostIsNotFound(t *testing.T) {
	s := newTestServer(t, false)
	writePost(t, s.postsDir, "untitled", "---\ndate: 2024-03-01\n---\nNo title here.\n")

	w := s.do(t, http.MethodGet, "/post/untitled", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/posts/untitled", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStylesheet(t *testing.T) {
	s := newTestServer(t, false)

	index := s.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, index.Code)
	assert.Contains(t, index.Body.String(), `href="/css/style.css"`)

	w := s.do(t, http.MethodGet, "/css/style.css", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), ".post-summary")
	assert.NotEmpty(t, w.Header().Get("ETag"))
}

func TestTagPage(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/tag/caching", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Newer Post")
	assert.NotContains(t, w.Body.String(), "Older Post")

	w = s.do(t, http.MethodGet, "/tag/Go", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Older Post")

	w = s.do(t, http.MethodGet, "/tag/nothing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeed(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/feed.json", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, feedContentType, w.Header().Get("Content-Type"))

	var feed struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Newer Post", feed.Items[0].Title)
}

func TestListPosts(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/api/posts", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var posts []api.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	require.Len(t, posts, 2)
	assert.Equal(t, "newer", posts[0].Slug)
	assert.Equal(t, "/post/newer", posts[0].URL)
	assert.Equal(t, []string{"Go", "Caching"}, posts[0].Tags)
	assert.Equal(t, "older", posts[1].Slug)
	assert.Equal(t, "The older body.", posts[1].Excerpt)
}

func TestGetPost(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/api/posts/older", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var post api.PostDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, "Older Post", post.Title)
	assert.Contains(t, post.Content, "<p>The older body.</p>")
	assert.Empty(t, post.Markdown, "public API does not expose the source")

	w = s.do(t, http.MethodGet, "/api/posts/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidate(t *testing.T) {
	s := newTestServer(t, true)
	auth := s.login(t)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/", nil, nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/post/newer", nil, nil).Code)
	require.Equal(t, 2, s.cache.Stats().Entries)

	w := s.do(t, http.MethodPost, "/api/invalidate", api.InvalidateRequest{Slug: "newer"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 2, s.cache.Stats().Entries)

	w = s.do(t, http.MethodPost, "/api/invalidate", api.InvalidateRequest{Slug: "newer"}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, s.cache.Stats().Entries)

	// no slug drops every cached page, posts included
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/", nil, nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/post/older", nil, nil).Code)
	require.Equal(t, 2, s.cache.Stats().Entries)
	w = s.do(t, http.MethodPost, "/api/invalidate", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, s.cache.Stats().Entries)

	w = s.do(t, http.MethodPost, "/api/invalidate", api.InvalidateRequest{Slug: "../x"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminDisabledWithoutAuth(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/admin/login", api.LoginRequest{Username: testUser, Password: testPassword}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodGet, "/admin/posts", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPost, "/api/invalidate", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerify(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(t, http.MethodGet, "/admin/verify", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/admin/verify", nil, map[string]string{"Authorization": "Bearer expired.or.forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/admin/verify", nil, s.login(t))
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, testUser, resp.Username)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(t, http.MethodPost, "/admin/login", api.LoginRequest{Username: testUser, Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/admin/login", map[string]string{"username": testUser}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.login(t)
}

func TestAdminRequiresToken(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(t, http.MethodGet, "/admin/posts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/admin/posts", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminPostLifecycle(t *testing.T) {
	s := newTestServer(t, true)
	auth := s.login(t)

	// warm the cache so the write has something to invalidate
	require.NotContains(t, s.do(t, http.MethodGet, "/", nil, nil).Body.String(), "Fresh Thoughts")

	proto := api.PostProto{Title: "Fresh Thoughts", Date: "2024-03-01", Tags: []string{"Go"}, Content: "Hello **there**."}
	w := s.do(t, http.MethodPost, "/admin/posts", proto, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/post/fresh-thoughts", w.Header().Get("Location"))

	var created api.PostDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "fresh-thoughts", created.Slug)
	assert.Contains(t, created.Content, "<strong>there</strong>")
	assert.Equal(t, "Hello **there**.", strings.TrimSpace(created.Markdown))
	assert.FileExists(t, filepath.Join(s.postsDir, "fresh-thoughts.md"))

	index := s.do(t, http.MethodGet, "/", nil, nil).Body.String()
	assert.Contains(t, index, "Fresh Thoughts")
	assert.Less(t, strings.Index(index, "Fresh Thoughts"), strings.Index(index, "Newer Post"))

	w = s.do(t, http.MethodPost, "/admin/posts", proto, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/admin/posts/fresh-thoughts", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/post/fresh-thoughts", nil, nil).Code)
	update := api.PostProto{Title: "Fresh Thoughts, Revised", Content: "Updated body."}
	w = s.do(t, http.MethodPut, "/admin/posts/fresh-thoughts", update, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated api.PostDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "2024-03-01", updated.Date, "an empty date keeps the current one")
	assert.Empty(t, updated.Tags)
	assert.Contains(t, s.do(t, http.MethodGet, "/post/fresh-thoughts", nil, nil).Body.String(), "Updated body.")

	w = s.do(t, http.MethodPut, "/admin/posts/missing", update, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/admin/posts/fresh-thoughts", nil, auth)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/post/fresh-thoughts", nil, nil).Code)
	assert.NotContains(t, s.do(t, http.MethodGet, "/", nil, nil).Body.String(), "Fresh Thoughts")

	w = s.do(t, http.MethodDelete, "/admin/posts/fresh-thoughts", nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCreatePost_Invalid(t *testing.T) {
	s := newTestServer(t, true)
	auth := s.login(t)

	w := s.do(t, http.MethodPost, "/admin/posts", api.PostProto{Content: "no title"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/admin/posts", api.PostProto{Title: "Bad date", Date: "soon"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/admin/posts", api.PostProto{Title: "Bad slug", Slug: "../etc"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminCache(t *testing.T) {
	s := newTestServer(t, true)
	auth := s.login(t)

	s.do(t, http.MethodGet, "/", nil, nil)
	s.do(t, http.MethodGet, "/", nil, nil)

	w := s.do(t, http.MethodGet, "/admin/cache/stats", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)

	var stats api.CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Renders)

	w = s.do(t, http.MethodPost, "/admin/cache/clear", nil, auth)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.cache.Stats().Entries)
}

func multipartUpload(t *testing.T, filename string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestAdminMedia(t *testing.T) {
	s := newTestServer(t, true)
	auth := s.login(t)

	body, contentType := multipartUpload(t, "photo.png", []byte("not really a png"))
	headers := map[string]string{"Authorization": auth["Authorization"], "Content-Type": contentType}
	w := s.do(t, http.MethodPost, "/admin/media", body, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded api.Media
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.Equal(t, "photo.png", uploaded.OriginalName)
	assert.Equal(t, "image/png", uploaded.ContentType)
	assert.Equal(t, "image", uploaded.Type)
	assert.True(t, strings.HasSuffix(uploaded.Name, ".png"))
	assert.Equal(t, "/uploads/"+uploaded.Name, uploaded.URL)

	w = s.do(t, http.MethodGet, uploaded.URL, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not really a png", w.Body.String())

	w = s.do(t, http.MethodGet, "/admin/media", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []api.Media
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, uploaded.Name, listed[0].Name)

	w = s.do(t, http.MethodDelete, "/admin/media/"+uploaded.Name, nil, auth)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/admin/media/"+uploaded.Name, nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminMedia_Video(t *testing.T) {
	s := newTestServer(t, true)
	auth := s.login(t)

	body, contentType := multipartUpload(t, "clip.mp4", []byte("not really a video"))
	w := s.do(t, http.MethodPost, "/admin/media", body, map[string]string{"Authorization": auth["Authorization"], "Content-Type": contentType})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded api.Media
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.Equal(t, "video/mp4", uploaded.ContentType)
	assert.Equal(t, "video", uploaded.Type)
	assert.True(t, strings.HasSuffix(uploaded.Name, ".mp4"))
}

func TestAdminMedia_Rejected(t *testing.T) {
	s := newTestServer(t, true)
	auth := s.login(t)

	body, contentType := multipartUpload(t, "script.sh", []byte("echo hi"))
	w := s.do(t, http.MethodPost, "/admin/media", body, map[string]string{"Authorization": auth["Authorization"], "Content-Type": contentType})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, contentType = multipartUpload(t, "big.png", bytes.Repeat([]byte("x"), 2048))
	w = s.do(t, http.MethodPost, "/admin/media", body, map[string]string{"Authorization": auth["Authorization"], "Content-Type": contentType})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.do(t, http.MethodPost, "/admin/media", nil, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "Post not found", err: domain.ErrPostNotFound, expected: http.StatusNotFound},
		{name: "Tag not found", err: domain.ErrTagNotFound, expected: http.StatusNotFound},
		{name: "Media not found", err: domain.ErrMediaNotFound, expected: http.StatusNotFound},
		{name: "Wrapped post exists", err: errors.Join(errors.New("ctx"), domain.ErrPostExists), expected: http.StatusConflict},
		{name: "Invalid slug", err: domain.ErrInvalidSlug, expected: http.StatusBadRequest},
		{name: "Invalid post", err: domain.ErrInvalidPost, expected: http.StatusBadRequest},
		{name: "Unsupported media", err: domain.ErrUnsupportedMedia, expected: http.StatusBadRequest},
		{name: "Media too large", err: domain.ErrMediaTooLarge, expected: http.StatusRequestEntityTooLarge},
		{name: "Bad credentials", err: domain.ErrInvalidCredentials, expected: http.StatusUnauthorized},
		{name: "Bad token", err: domain.ErrInvalidToken, expected: http.StatusUnauthorized},
		{name: "Unknown", err: errors.New("disk on fire"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := errorStatus(tt.err); result != tt.expected {
				t.Errorf("errorStatus(%v) = %d, want %d", tt.err, result, tt.expected)
			}
		})
	}
}

func TestEtagMatches(t *testing.T) {
	etag := pageETag("<html></html>")

	tests := []struct {
		name     string
		header   string
		expected bool
	}{
		{name: "Empty header", header: "", expected: false},
		{name: "Exact match", header: etag, expected: true},
		{name: "Weak match", header: "W/" + etag, expected: true},
		{name: "In a list", header: `"other", ` + etag, expected: true},
		{name: "Wildcard", header: "*", expected: true},
		{name: "Different", header: `"abc"`, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := etagMatches(tt.header, etag); result != tt.expected {
				t.Errorf("etagMatches(%q) = %v, want %v", tt.header, result, tt.expected)
			}
		})
	}
}
