package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// Store is the response-cache contract shared by the in-memory and redis
// implementations. Values are serialized payloads (generation content or
// JSON-encoded fact lists).
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	SetTTL(ctx context.Context, key, value string, ttl time.Duration)
	Has(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string)
	Cleanup(ctx context.Context)
	Stats() Stats
}

// Stats are cumulative counters for observability.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hit_rate"`
}

type entry struct {
	key       string
	value     string
	createdAt time.Time
	ttl       time.Duration
	hitCount  int64
}

func (e *entry) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.After(e.createdAt.Add(e.ttl))
}

// ResponseCache is an insertion-ordered LRU with per-entry TTL and lazy
// expiry. Concurrent Set calls on the same key are last-write-wins; the
// memoized generation calls are idempotent so that race is acceptable here.
type ResponseCache struct {
	log        *logger.Logger
	name       string
	maxSize    int
	defaultTTL time.Duration
	onEvict    func(key, value string)

	mu    sync.Mutex
	ll    *list.List // front = most recently used
	items map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

type Option func(*ResponseCache)

// WithEvictionCallback is invoked (outside hot paths but under the cache
// lock) whenever an LRU eviction occurs. Expired-entry discards do not count.
func WithEvictionCallback(fn func(key, value string)) Option {
	return func(c *ResponseCache) { c.onEvict = fn }
}

func New(log *logger.Logger, name string, maxSize int, defaultTTL time.Duration, opts ...Option) *ResponseCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	c := &ResponseCache{
		log:        log.With("service", "ResponseCache", "cache", name),
		name:       name,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *ResponseCache) Name() string { return c.name }

func (c *ResponseCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return "", false
	}
	e := el.Value.(*entry)
	e.hitCount++
	c.hits++
	c.ll.MoveToFront(el)
	return e.value, true
}

func (c *ResponseCache) Set(ctx context.Context, key, value string) {
	c.SetTTL(ctx, key, value, c.defaultTTL)
}

func (c *ResponseCache) SetTTL(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.createdAt = time.Now()
		e.ttl = ttl
		c.ll.MoveToFront(el)
		return
	}

	for len(c.items) >= c.maxSize {
		c.evictOldestLocked()
	}

	el := c.ll.PushFront(&entry{
		key:       key,
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
	})
	c.items[key] = el
}

func (c *ResponseCache) Has(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()
	_, ok := c.items[key]
	return ok
}

func (c *ResponseCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el, false)
	}
}

// Cleanup discards every expired entry immediately instead of waiting for
// the next read or write.
func (c *ResponseCache) Cleanup(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()
}

func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
		HitRate:   rate,
	}
}

func (c *ResponseCache) purgeExpiredLocked() {
	now := time.Now()
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry).expired(now) {
			c.removeLocked(el, false)
		}
		el = prev
	}
}

func (c *ResponseCache) evictOldestLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.evictions++
	c.removeLocked(el, true)
}

func (c *ResponseCache) removeLocked(el *list.Element, evicted bool) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
	if evicted && c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
