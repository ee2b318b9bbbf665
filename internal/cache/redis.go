package cache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumenlearn/coursegen-backend/internal/platform/envutil"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// RedisStore shares memoized generation results across workers. Expiry is
// server-side TTL; LRU pressure is delegated to redis' maxmemory policy, so
// Stats reports evictions as 0.
type RedisStore struct {
	log        *logger.Logger
	rdb        *goredis.Client
	prefix     string
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisStore(log *logger.Logger, name string, defaultTTL time.Duration) (*RedisStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		log:        log.With("service", "RedisCache", "cache", name),
		rdb:        rdb,
		prefix:     "coursegen:cache:" + strings.TrimSpace(name) + ":",
		defaultTTL: defaultTTL,
	}, nil
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err != goredis.Nil {
			s.log.Warn("redis get failed", "error", err)
		}
		s.misses.Add(1)
		return "", false
	}
	s.hits.Add(1)
	return v, true
}

func (s *RedisStore) Set(ctx context.Context, key, value string) {
	s.SetTTL(ctx, key, value, s.defaultTTL)
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		s.log.Warn("redis set failed", "error", err)
	}
}

func (s *RedisStore) Has(ctx context.Context, key string) bool {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		s.log.Warn("redis exists failed", "error", err)
		return false
	}
	return n > 0
}

func (s *RedisStore) Delete(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		s.log.Warn("redis del failed", "error", err)
	}
}

// Cleanup is a no-op; redis expires keys server-side.
func (s *RedisStore) Cleanup(context.Context) {}

func (s *RedisStore) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Hits: hits, Misses: misses, HitRate: rate}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
