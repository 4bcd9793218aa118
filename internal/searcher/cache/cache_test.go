package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	fail bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("connection refused")
	}
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func key(q string) Key {
	return Key{Language: "zh", Generation: 3, Mode: "passage", Question: q, TopN: 1}
}

func TestBuildKeyNormalizesQuestion(t *testing.T) {
	assert.Equal(t, buildKey(key("Cats  and\tDogs")), buildKey(key("cats and dogs")))
	assert.NotEqual(t, buildKey(key("cats dogs")), buildKey(key("dogs cats")), "order matters")

	other := key("cats")
	other.Generation = 4
	assert.NotEqual(t, buildKey(key("cats")), buildKey(other))
	other = key("cats")
	other.Mode = "sentence"
	assert.NotEqual(t, buildKey(key("cats")), buildKey(other))
	other = key("cats")
	other.TopN = 3
	assert.NotEqual(t, buildKey(key("cats")), buildKey(other))
	other = key("cats")
	other.Settings = "zh+unigram|content|k1=2|b=0.75"
	assert.NotEqual(t, buildKey(key("cats")), buildKey(other))

	assert.Regexp(t, `^passage:zh:g3:[0-9a-f]{32}$`, buildKey(key("cats")))
}

func TestGetOrComputeCachesResult(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	calls := 0
	compute := func() (Entry, error) {
		calls++
		return Entry{Passage: "猫坐在垫子上。", Found: true, Score: 1.5}, nil
	}

	entry, cached, err := c.GetOrCompute(ctx, key("猫"), compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "猫坐在垫子上。", entry.Passage)

	entry, cached, err = c.GetOrCompute(ctx, key("猫"), compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.True(t, entry.Found)
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Minute, backend.ttls[buildKey(key("猫"))])

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrComputeCachesEmptyResult(t *testing.T) {
	c := New(newMemBackend(), 0, nil)
	_, _, err := c.GetOrCompute(context.Background(), key("鸟"), func() (Entry, error) { return Entry{}, nil })
	require.NoError(t, err)
	entry, ok := c.Get(context.Background(), key("鸟"))
	require.True(t, ok)
	assert.False(t, entry.Found)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(newMemBackend(), 0, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), key("猫"), func() (Entry, error) { return Entry{}, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), key("猫"))
	assert.False(t, ok)
}

func TestBackendFailureFallsThrough(t *testing.T) {
	backend := newMemBackend()
	backend.fail = true
	c := New(backend, 0, nil)
	entry, cached, err := c.GetOrCompute(context.Background(), key("猫"), func() (Entry, error) {
		return Entry{Passage: "p", Found: true}, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "p", entry.Passage)
}

func TestConcurrentComputeIsShared(t *testing.T) {
	c := New(newMemBackend(), 0, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (Entry, error) {
		calls.Add(1)
		<-release
		return Entry{Passage: "p", Found: true}, nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key("same"), compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestInvalidateDropsLanguage(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, 0, nil)
	ctx := context.Background()
	c.Set(ctx, key("猫"), Entry{Found: true})
	en := key("cat")
	en.Language = "en"
	c.Set(ctx, en, Entry{Found: true})

	require.NoError(t, c.Invalidate(ctx, "zh"))
	_, ok := c.Get(ctx, key("猫"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, en)
	assert.True(t, ok)
}
