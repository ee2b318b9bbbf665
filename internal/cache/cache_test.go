package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

func newTestCache(maxSize int, ttl time.Duration, opts ...Option) *ResponseCache {
	return New(logger.NewNop(), "test", maxSize, ttl, opts...)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(3, time.Minute)

	for i := 0; i < 4; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
	}
	if _, ok := c.Get(ctx, "k0"); ok {
		t.Fatalf("k0 should have been evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get(ctx, fmt.Sprintf("k%d", i)); !ok {
			t.Fatalf("k%d should survive", i)
		}
	}
}

func TestCacheReadRefreshesRecency(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(3, time.Minute)

	c.Set(ctx, "k0", "v0")
	c.Set(ctx, "k1", "v1")
	c.Set(ctx, "k2", "v2")
	if _, ok := c.Get(ctx, "k0"); !ok {
		t.Fatalf("k0 missing before eviction")
	}
	c.Set(ctx, "k3", "v3")

	if _, ok := c.Get(ctx, "k0"); !ok {
		t.Fatalf("recently read k0 must survive eviction")
	}
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatalf("k1 was least recently used and should be gone")
	}
}

func TestCacheTTLExpiryIsLazy(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(8, time.Minute)

	c.SetTTL(ctx, "short", "v", 10*time.Millisecond)
	c.Set(ctx, "long", "v")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Fatalf("expired entry returned")
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Fatalf("live entry dropped")
	}
}

func TestCacheEvictionCallback(t *testing.T) {
	ctx := context.Background()
	var evictedKeys []string
	c := newTestCache(2, time.Minute, WithEvictionCallback(func(k, _ string) {
		evictedKeys = append(evictedKeys, k)
	}))

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	c.Set(ctx, "c", "3")

	if len(evictedKeys) != 1 || evictedKeys[0] != "a" {
		t.Fatalf("expected eviction callback for a, got %v", evictedKeys)
	}
}

func TestCacheStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(4, time.Minute)

	c.Set(ctx, "a", "1")
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatalf("expected hit")
	}
	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("unexpected counters: %+v", st)
	}
	if st.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %f", st.HitRate)
	}
}

func TestCacheDeleteAndHas(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(4, time.Minute)

	c.Set(ctx, "a", "1")
	if !c.Has(ctx, "a") {
		t.Fatalf("expected Has true")
	}
	c.Delete(ctx, "a")
	if c.Has(ctx, "a") {
		t.Fatalf("expected Has false after delete")
	}
}

func TestKeyStableAndOrderIndependent(t *testing.T) {
	a := Key(map[string]any{"model": "gpt", "temperature": 0.2, "prompt": "x"})
	b := Key(map[string]any{"prompt": "x", "model": "gpt", "temperature": 0.2})
	if a != b {
		t.Fatalf("key must be order independent: %s vs %s", a, b)
	}
	if len(a) != keyDigestLen {
		t.Fatalf("expected %d-char digest, got %d", keyDigestLen, len(a))
	}
	c := Key(map[string]any{"prompt": "y", "model": "gpt", "temperature": 0.2})
	if c == a {
		t.Fatalf("different params must hash differently")
	}
}
