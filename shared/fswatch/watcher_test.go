package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugFromEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    fsnotify.Event
		expected string
	}{
		{name: "Write to post", event: fsnotify.Event{Name: "/posts/hello.md", Op: fsnotify.Write}, expected: "hello"},
		{name: "Created post", event: fsnotify.Event{Name: "/posts/new-post.md", Op: fsnotify.Create}, expected: "new-post"},
		{name: "Removed post", event: fsnotify.Event{Name: "/posts/old.md", Op: fsnotify.Remove}, expected: "old"},
		{name: "Renamed post", event: fsnotify.Event{Name: "/posts/moved.md", Op: fsnotify.Rename}, expected: "moved"},
		{name: "Chmod only", event: fsnotify.Event{Name: "/posts/hello.md", Op: fsnotify.Chmod}, expected: ""},
		{name: "Reserved name", event: fsnotify.Event{Name: "/posts/README.md", Op: fsnotify.Write}, expected: ""},
		{name: "Temp file", event: fsnotify.Event{Name: "/posts/.hello-123.tmp", Op: fsnotify.Create}, expected: ""},
		{name: "Not markdown", event: fsnotify.Event{Name: "/posts/notes.txt", Op: fsnotify.Write}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := slugFromEvent(tt.event); result != tt.expected {
				t.Errorf("slugFromEvent(%v) = %q, want %q", tt.event, result, tt.expected)
			}
		})
	}
}

func TestDebouncer_Batches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string
	d := newDebouncer(time.Hour, func(slugs []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, slugs)
	})

	d.add("b")
	d.add("a")
	d.add("b")
	d.flush()
	d.flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"a", "b"}}, batches)
}

func TestWatcher_ReportsPostChanges(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan []string, 10)

	w, err := NewWatcher(dir, 20*time.Millisecond, func(slugs []string) {
		changed <- slugs
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.md"), []byte("---\ntitle: Hi\n---\n"), 0644))

	select {
	case slugs := <-changed:
		assert.Equal(t, []string{"hello"}, slugs)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
