// Package redisstore keeps rendered pages in Redis hashes.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dfryer1193/inkblog/blog/cache"
	"github.com/redis/go-redis/v9"
)

var _ cache.Store = (*PageStore)(nil)

const (
	bodyField      = "body"
	updatedAtField = "updated_at"
	scanBatch      = 100
)

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// PageStore implements cache.Store with one hash per page at <prefix><key>.
// A positive expiry lets Redis drop pages on its own.
type PageStore struct {
	client redis.UniversalClient
	prefix string
	expiry time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewPageStore(client redis.UniversalClient, prefix string, expiry time.Duration) *PageStore {
	return &PageStore{
		client: client,
		prefix: prefix,
		expiry: expiry,
	}
}

func (s *PageStore) Get(ctx context.Context, key string) (cache.Page, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return cache.Page{}, err
	}
	body, ok := fields[bodyField]
	if !ok {
		return cache.Page{}, cache.ErrNotFound
	}

	page := cache.Page{Body: body}
	if unix, err := strconv.ParseInt(fields[updatedAtField], 10, 64); err == nil {
		page.UpdatedAt = time.Unix(unix, 0)
	}
	return page, nil
}

func (s *PageStore) Put(ctx context.Context, key string, body string) error {
	redisKey := s.prefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		pipe.HSet(ctx, redisKey, bodyField, body, updatedAtField, strconv.FormatInt(time.Now().Unix(), 10))
		if s.expiry > 0 {
			pipe.Expire(ctx, redisKey, s.expiry)
		}
		return nil
	})
	return err
}

func (s *PageStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// DeletePrefix collects the matching keys before deleting any, so the scan cursor
// is not disturbed by its own deletions.
func (s *PageStore) DeletePrefix(ctx context.Context, prefix string) error {
	match := globEscaper.Replace(s.prefix+prefix) + "*"
	iter := s.client.Scan(ctx, 0, match, scanBatch).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to scan pages: %w", err)
	}

	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete pages: %w", err)
		}
	}
	return nil
}
