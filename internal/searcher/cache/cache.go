// Package cache keeps decoded postings lists in Redis so repeated lookups of
// a hot term skip the store read and the decode.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/logger"
	pkgredis "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/resilience"
)

// KeyPrefix is shared by every cached postings entry; Invalidate drops all
// keys under it.
const KeyPrefix = "postings:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Consecutive Redis failures before the cache stops calling Redis, and how
// long it stays away.
const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

type PostingsCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.Breaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration) *PostingsCache {
	return &PostingsCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewBreaker("postings-cache", breakerThreshold, breakerCooldown),
		logger:  logger.WithComponent("postings-cache"),
	}
}

// Get returns the cached list for term under mode. Any Redis failure, or an
// open circuit, counts as a miss.
func (c *PostingsCache) Get(ctx context.Context, mode, term string) (index.PostingList, bool) {
	key := Key(mode, term)
	var data []byte
	absent := false
	err := c.breaker.Do(func() error {
		var err error
		data, err = c.store.GetBytes(ctx, key)
		if pkgredis.IsNilError(err) {
			absent = true
			return nil
		}
		return err
	})
	if err != nil || absent {
		if err != nil && !errors.Is(err, resilience.ErrOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var list index.PostingList
	if err := json.Unmarshal(data, &list); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "term", term, "mode", mode)
	return list, true
}

func (c *PostingsCache) Set(ctx context.Context, mode, term string, list index.PostingList) {
	key := Key(mode, term)
	data, err := json.Marshal(list)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrLoad serves term from the cache, or calls load once per key across
// concurrent callers and caches its result. Errors from load are not cached.
func (c *PostingsCache) GetOrLoad(
	ctx context.Context,
	mode, term string,
	load func() (index.PostingList, error),
) (index.PostingList, bool, error) {
	if list, ok := c.Get(ctx, mode, term); ok {
		return list, true, nil
	}
	val, err, _ := c.group.Do(Key(mode, term), func() (any, error) {
		list, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, mode, term, list)
		return list, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(index.PostingList), false, nil
}

// Invalidate removes every cached postings list.
func (c *PostingsCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, KeyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating postings cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *PostingsCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key hashes term so arbitrary bytes in a token never leak into the key
// namespace.
func Key(mode, term string) string {
	sum := sha256.Sum256([]byte(term))
	return fmt.Sprintf("%s%s:%x", KeyPrefix, mode, sum[:16])
}
