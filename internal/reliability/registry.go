package reliability

import (
	"sync"
	"time"

	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// Registry holds the per-dependency breakers. It is constructed once at
// process start and passed by reference so tests can build isolated copies.
type Registry struct {
	log *logger.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:      log,
		breakers: make(map[string]*Breaker),
	}
}

// NewDefaultRegistry returns a registry pre-populated for the two generative
// dependencies: text, and a stricter breaker for the costlier vision calls.
func NewDefaultRegistry(log *logger.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(DependencyText, BreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxAttempts: 2,
	})
	r.Register(DependencyVision, BreakerConfig{
		FailureThreshold:    3,
		ResetTimeout:        60 * time.Second,
		HalfOpenMaxAttempts: 2,
	})
	return r
}

const (
	DependencyText   = "text-generation"
	DependencyVision = "vision"
)

func (r *Registry) Register(name string, cfg BreakerConfig) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := NewBreaker(r.log, name, cfg)
	r.breakers[name] = b
	return b
}

// Breaker returns the named breaker, registering one with defaults on first
// use so every dependency always shares a single breaker.
func (r *Registry) Breaker(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewBreaker(r.log, name, DefaultBreakerConfig())
	r.breakers[name] = b
	return b
}

// ResetAll closes every breaker. Admin hook.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
