// Package fswatch reports changes to post files in a directory.
package fswatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces the burst of events an editor produces when saving
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls onChange with the slugs of post files that were created, written,
// removed or renamed. Events arriving within the debounce window are batched.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debouncer *debouncer
	started   atomic.Bool
	done      chan struct{}
}

func NewWatcher(dir string, window time.Duration, onChange func(slugs []string)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if window <= 0 {
		window = DefaultDebounce
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		debouncer: newDebouncer(window, onChange),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the directory, creating it if needed, until ctx is done or Close is called
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create watched directory: %w", err)
	}
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.started.Store(true)
	go w.processEvents(ctx)
	log.Info().Str("dir", w.dir).Msg("Watching posts for changes")
	return nil
}

// Close stops watching and delivers any pending changes
func (w *Watcher) Close() error {
	err := w.fsWatcher.Close()
	if w.started.Load() {
		<-w.done
	}
	w.debouncer.flush()
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if slug := slugFromEvent(event); slug != "" {
				log.Debug().Str("slug", slug).Str("op", event.Op.String()).Msg("Post file changed")
				w.debouncer.add(slug)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("dir", w.dir).Msg("File watcher error")
		}
	}
}

// slugFromEvent returns the slug of the post an event concerns, or "" to ignore it
func slugFromEvent(event fsnotify.Event) string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return ""
	}
	return domain.SlugFromFileName(filepath.Base(event.Name))
}

// debouncer batches slugs until no new one arrived for a window
type debouncer struct {
	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	window   time.Duration
	callback func(slugs []string)
}

func newDebouncer(window time.Duration, callback func(slugs []string)) *debouncer {
	return &debouncer{
		pending:  make(map[string]struct{}),
		window:   window,
		callback: callback,
	}
}

func (d *debouncer) add(slug string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[slug] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	slugs := make([]string, 0, len(d.pending))
	for slug := range d.pending {
		slugs = append(slugs, slug)
	}
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	if len(slugs) == 0 || d.callback == nil {
		return
	}
	sort.Strings(slugs)
	d.callback(slugs)
}
