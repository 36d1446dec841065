package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGet(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")
	store := NewFileStore(dir)

	_, err := store.Get(ctx, IndexKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, IndexKey, "<html>index</html>"))

	raw, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>index</html>", string(raw))

	page, err := store.Get(ctx, IndexKey)
	require.NoError(t, err)
	assert.Equal(t, "<html>index</html>", page.Body)
	assert.False(t, page.UpdatedAt.IsZero())
}

func TestFileStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	require.NoError(t, store.Put(ctx, PostKey("a"), "one"))
	require.NoError(t, store.Put(ctx, PostKey("a"), "two"))

	page, err := store.Get(ctx, PostKey("a"))
	require.NoError(t, err)
	assert.Equal(t, "two", page.Body)

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}

func TestFileStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	require.NoError(t, store.Put(ctx, PostKey("a"), "page"))
	require.NoError(t, store.Delete(ctx, PostKey("a")))
	require.NoError(t, store.Delete(ctx, PostKey("a")), "deleting a missing page is not an error")

	_, err := store.Get(ctx, PostKey("a"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	for _, key := range []string{IndexKey, TagKey("go"), TagKey("rust"), PostKey("a")} {
		require.NoError(t, store.Put(ctx, key, key))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tag-notes.txt"), []byte("keep"), 0644))

	require.NoError(t, store.DeletePrefix(ctx, "tag-"))

	for key, want := range map[string]bool{IndexKey: true, TagKey("go"): false, TagKey("rust"): false, PostKey("a"): true} {
		_, err := store.Get(ctx, key)
		if want {
			assert.NoError(t, err, key)
		} else {
			assert.ErrorIs(t, err, ErrNotFound, key)
		}
	}
	assert.FileExists(t, filepath.Join(dir, "tag-notes.txt"))

	require.NoError(t, store.DeletePrefix(ctx, ""))
	_, err := store.Get(ctx, IndexKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_DeletePrefixMissingDir(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, store.DeletePrefix(context.Background(), ""))
}

func TestFileStore_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	for _, key := range []string{"", "../escape", "a/b", `a\b`, ".hidden"} {
		assert.Error(t, store.Put(ctx, key, "x"), key)
		_, err := store.Get(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestPageCache_WithFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	render, calls := countingRender("<html>post</html>")

	c := NewPageCache(WithStore(NewFileStore(dir)))
	_, err := c.GetCached(ctx, PostKey("hello"), render)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "post-hello.html"))

	restarted := NewPageCache(WithStore(NewFileStore(dir)))
	body, err := restarted.GetCached(ctx, PostKey("hello"), render)
	require.NoError(t, err)
	assert.Equal(t, "<html>post</html>", body)
	assert.EqualValues(t, 1, calls.Load())

	restarted.InvalidatePost(ctx, "hello")
	assert.NoFileExists(t, filepath.Join(dir, "post-hello.html"))
}
