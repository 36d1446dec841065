// Package cache memoizes rendered pages in memory, optionally backed by a Store,
// and invalidates them when the posts they were rendered from change.
package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RenderFunc produces the page for a key on a cache miss
type RenderFunc func(ctx context.Context) (string, error)

type entry struct {
	body     string
	storedAt time.Time
}

// Stats are counters since the cache was created
type Stats struct {
	Entries       int
	Hits          int64
	Misses        int64
	Renders       int64
	Invalidations int64
}

// Option configures a PageCache
type Option func(*PageCache)

// WithStore backs the in-memory map with a Store that survives restarts
func WithStore(store Store) Option {
	return func(c *PageCache) {
		c.store = store
	}
}

// WithTTL expires entries ttl after they were stored. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *PageCache) {
		c.ttl = ttl
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *PageCache) {
		c.now = now
	}
}

// PageCache is a read-through cache of rendered pages. It is safe for concurrent use.
//
// Every invalidation bumps a generation counter; a render that started before an
// invalidation is returned to its caller but not stored, so a cached page never
// predates the last write.
type PageCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64

	store Store
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	hits          atomic.Int64
	misses        atomic.Int64
	renders       atomic.Int64
	invalidations atomic.Int64
}

// NewPageCache creates an empty cache
func NewPageCache(opts ...Option) *PageCache {
	c := &PageCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCached returns the page for key, calling render on a miss.
// Store read failures count as misses and store write failures are logged;
// neither fails the call. Render errors are returned and nothing is cached.
func (c *PageCache) GetCached(ctx context.Context, key string, render RenderFunc) (string, error) {
	if body, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return body, nil
	}
	c.misses.Add(1)

	// Concurrent misses on one key within a generation share a single load. The
	// shared work must not be cancelled because the first caller went away.
	gen := c.currentGeneration()
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10)+":"+key, func() (any, error) {
		return c.load(loadCtx, key, gen, render)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *PageCache) load(ctx context.Context, key string, gen uint64, render RenderFunc) (string, error) {
	if body, ok := c.lookup(key); ok {
		return body, nil
	}

	if c.store != nil {
		page, err := c.store.Get(ctx, key)
		switch {
		case err == nil && !c.expired(page.UpdatedAt):
			storedAt := page.UpdatedAt
			if storedAt.IsZero() {
				storedAt = c.now()
			}
			c.fill(key, gen, entry{body: page.Body, storedAt: storedAt})
			return page.Body, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			log.Warn().Err(err).Str("key", key).Msg("Cache store read failed, rendering")
		}
	}

	body, err := render(ctx)
	if err != nil {
		return "", err
	}
	c.renders.Add(1)

	if !c.fill(key, gen, entry{body: body, storedAt: c.now()}) || c.store == nil {
		return body, nil
	}

	if err := c.store.Put(ctx, key, body); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to persist cached page")
		return body, nil
	}

	// An invalidation may have deleted the key from the store before the Put landed
	if c.currentGeneration() != gen {
		if err := c.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to drop stale cached page")
		}
	}

	return body, nil
}

func (c *PageCache) lookup(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.expired(e.storedAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return e.body, true
}

// fill stores e unless an invalidation happened since gen was read
func (c *PageCache) fill(key string, gen uint64, e entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.entries[key] = e
	return true
}

func (c *PageCache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *PageCache) expired(storedAt time.Time) bool {
	if c.ttl <= 0 || storedAt.IsZero() {
		return false
	}
	return c.now().Sub(storedAt) >= c.ttl
}

// Invalidate drops key from memory and from the backing store.
// A missing key is a no-op.
func (c *PageCache) Invalidate(ctx context.Context, key string) {
	match := func(k string) bool { return k == key }
	c.drop(match)
	c.invalidations.Add(1)

	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to delete cached page")
	}
	// A miss during the delete may have read the old page back from the store
	c.drop(match)
}

func (c *PageCache) invalidatePrefix(ctx context.Context, prefix string) {
	match := func(k string) bool { return strings.HasPrefix(k, prefix) }
	c.drop(match)
	c.invalidations.Add(1)

	if c.store == nil {
		return
	}
	if err := c.store.DeletePrefix(ctx, prefix); err != nil {
		log.Warn().Err(err).Str("prefix", prefix).Msg("Failed to delete cached pages")
	}
	c.drop(match)
}

// drop bumps the generation and removes the matching entries from memory
func (c *PageCache) drop(match func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
		}
	}
}

// InvalidateIndex drops every page that lists posts: the index, the feed and tag pages
func (c *PageCache) InvalidateIndex(ctx context.Context) {
	c.Invalidate(ctx, IndexKey)
	c.Invalidate(ctx, FeedKey)
	c.invalidatePrefix(ctx, tagKeyPrefix)
}

// InvalidatePost drops a post page and, since listings embed post summaries, the index
func (c *PageCache) InvalidatePost(ctx context.Context, slug string) {
	c.Invalidate(ctx, PostKey(slug))
	c.InvalidateIndex(ctx)
}

// Clear drops every page
func (c *PageCache) Clear(ctx context.Context) {
	c.invalidatePrefix(ctx, "")
}

// Sweep removes expired entries from memory
func (c *PageCache) Sweep() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if c.expired(e.storedAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired entries every interval until ctx is done.
// It does nothing when the cache has no TTL.
func (c *PageCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if c.ttl <= 0 || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("Swept expired cached pages")
				}
			}
		}
	}()
}

// Stats returns a snapshot of the cache counters
func (c *PageCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Entries:       n,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Renders:       c.renders.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
