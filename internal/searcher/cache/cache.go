// Package cache memoizes per-question retrieval results in Redis. Keys carry
// the index language and generation, so a rebuilt index never serves answers
// computed against an older one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/redis"
)

const keyPrefix = "passage:"

// Backend is the key-value store behind the cache; *pkgredis.Client
// implements it. Get must report a missing key with an error for which
// pkgredis.IsNilError is true.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Entry is the cached outcome of retrieving a passage for one question.
// Found is false when the question matched nothing.
type Entry struct {
	Passage string  `json:"passage"`
	Found   bool    `json:"found"`
	Score   float64 `json:"score"`
}

// Key identifies one cached retrieval. Settings carries the searcher's
// Fingerprint so answers ranked under other options are never reused.
type Key struct {
	Language   string
	Generation uint64
	Settings   string
	Mode       string
	Question   string
	TopN       int
}

type PassageCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *PassageCache {
	return &PassageCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "passage-cache"),
	}
}

func (c *PassageCache) Get(ctx context.Context, k Key) (Entry, bool) {
	key := buildKey(k)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return Entry{}, false
	}
	c.hit()
	c.logger.Debug("cache hit", "question", k.Question, "key", key)
	return entry, true
}

// Set stores entry. Failures are logged; the cache never fails a lookup.
func (c *PassageCache) Set(ctx context.Context, k Key, entry Entry) {
	key := buildKey(k)
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached entry for k or computes, stores and returns
// it. Concurrent callers for the same key share one computation. cached
// reports whether the entry came from the backend.
func (c *PassageCache) GetOrCompute(
	ctx context.Context,
	k Key,
	compute func() (Entry, error),
) (entry Entry, cached bool, err error) {
	if entry, ok := c.Get(ctx, k); ok {
		return entry, true, nil
	}
	val, err, _ := c.group.Do(buildKey(k), func() (interface{}, error) {
		entry, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, k, entry)
		return entry, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return val.(Entry), false, nil
}

// Invalidate drops every cached entry for language, across generations.
func (c *PassageCache) Invalidate(ctx context.Context, language string) error {
	pattern := keyPrefix + language + ":*"
	deleted, err := c.backend.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "language", language, "keys_deleted", deleted)
	return nil
}

func (c *PassageCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PassageCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *PassageCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(k Key) string {
	raw := fmt.Sprintf("%s|%s|topn=%d|%s", k.Settings, k.Mode, k.TopN, normalizeQuestion(k.Question))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:g%d:%x", keyPrefix, k.Language, k.Generation, hash[:16])
}

// normalizeQuestion folds case and collapses whitespace. It does not reorder
// words: term order decides score summation order.
func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
