package reliability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// State is the circuit breaker mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is the sentinel all open-circuit rejections unwrap to.
var ErrCircuitOpen = errors.New("circuit open")

// OpenError names the rejected dependency and the remaining cool-down.
type OpenError struct {
	Dependency string
	Cooldown   time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %q, retry in %s", e.Dependency, e.Cooldown.Round(time.Millisecond))
}

func (e *OpenError) Unwrap() error { return ErrCircuitOpen }

// BreakerConfig tunes one dependency's breaker.
type BreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxAttempts int
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxAttempts: 2,
	}
}

// BreakerStats is a snapshot for observability endpoints and logs.
type BreakerStats struct {
	State            string    `json:"state"`
	FailureCount     int       `json:"failure_count"`
	HalfOpenFailures int       `json:"half_open_failures"`
	LastFailureTime  time.Time `json:"last_failure_time"`
	TotalCalls       int64     `json:"total_calls"`
	TotalRejections  int64     `json:"total_rejections"`
}

// Breaker is a per-dependency failure state machine. All calls to the same
// downstream dependency share one breaker; the counters are the intended
// shared-mutable state and are mutex-protected.
type Breaker struct {
	log  *logger.Logger
	name string
	cfg  BreakerConfig

	mu               sync.Mutex
	state            State
	failureCount     int
	halfOpenAttempts int
	halfOpenFailures int
	lastFailureTime  time.Time

	totalCalls      int64
	totalRejections int64
}

func NewBreaker(log *logger.Logger, name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	if cfg.HalfOpenMaxAttempts <= 0 {
		cfg.HalfOpenMaxAttempts = DefaultBreakerConfig().HalfOpenMaxAttempts
	}
	return &Breaker{
		log:   log.With("service", "Breaker", "dependency", name),
		name:  name,
		cfg:   cfg,
		state: StateClosed,
	}
}

func (b *Breaker) Name() string { return b.name }

// State reports the current mode, applying the lazy open -> half-open
// transition when the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

func (b *Breaker) refreshLocked() {
	if b.state == StateOpen && time.Since(b.lastFailureTime) >= b.cfg.ResetTimeout {
		b.transitionLocked(StateHalfOpen, "reset timeout elapsed")
	}
}

func (b *Breaker) transitionLocked(next State, reason string) {
	prev := b.state
	b.state = next
	b.halfOpenAttempts = 0
	b.halfOpenFailures = 0
	if next == StateClosed {
		b.failureCount = 0
	}
	b.log.Info("circuit state transition",
		"from", prev.String(),
		"to", next.String(),
		"reason", reason,
	)
}

// Call runs op through the breaker. When the circuit is open it returns an
// *OpenError without invoking op.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

// CallWithFallback runs op through the breaker and, when the circuit is
// open, runs fallback instead of surfacing the rejection.
func (b *Breaker) CallWithFallback(ctx context.Context, op, fallback func(context.Context) error) error {
	err := b.Call(ctx, op)
	if err != nil && errors.Is(err, ErrCircuitOpen) && fallback != nil {
		b.log.Warn("circuit open, running fallback")
		return fallback(ctx)
	}
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalCalls++
	b.refreshLocked()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.halfOpenAttempts >= b.cfg.HalfOpenMaxAttempts {
			b.totalRejections++
			return &OpenError{Dependency: b.name, Cooldown: b.remainingLocked()}
		}
		b.halfOpenAttempts++
		return nil
	default: // StateOpen
		b.totalRejections++
		return &OpenError{Dependency: b.name, Cooldown: b.remainingLocked()}
	}
}

func (b *Breaker) remainingLocked() time.Duration {
	rem := b.cfg.ResetTimeout - time.Since(b.lastFailureTime)
	if rem < 0 {
		rem = 0
	}
	return rem
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.state {
		case StateHalfOpen:
			b.transitionLocked(StateClosed, "trial call succeeded")
		case StateClosed:
			b.failureCount = 0
		}
		return
	}

	b.lastFailureTime = time.Now()
	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen, fmt.Sprintf("failure threshold %d reached", b.cfg.FailureThreshold))
		}
	case StateHalfOpen:
		b.halfOpenFailures++
		if b.halfOpenFailures >= b.cfg.HalfOpenMaxAttempts {
			b.transitionLocked(StateOpen, "half-open trials exhausted")
		}
	}
}

// Reset forces the breaker back to closed. Admin/test hook only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateClosed, "manual reset")
}

func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return BreakerStats{
		State:            b.state.String(),
		FailureCount:     b.failureCount,
		HalfOpenFailures: b.halfOpenFailures,
		LastFailureTime:  b.lastFailureTime,
		TotalCalls:       b.totalCalls,
		TotalRejections:  b.totalRejections,
	}
}
