// Package throttle provides per-backend rate limiting and concurrency
// caps for dispatch fan-out. Limits block rather than reject: a
// throttled leg waits for capacity (or context cancellation) instead
// of failing, so operation semantics are unchanged.
package throttle

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-backend behaviour such as rate limiting and
// concurrency.
type Config struct {
	// Backend is the backend kind this configuration applies to.
	Backend string

	// MaxConcurrency limits how many dispatch legs may run against this
	// backend simultaneously. Zero means no limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained legs per second that may be
	// dispatched to this backend. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// state tracks runtime limits for a single backend.
type state struct {
	limiter *rate.Limiter
	sem     chan struct{}
}

func newState(cfg Config) *state {
	st := &state{}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		st.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.MaxConcurrency > 0 {
		st.sem = make(chan struct{}, cfg.MaxConcurrency)
	}
	return st
}

// Manager controls per-backend rate limiting and concurrency. It is
// safe for concurrent use. Backends not configured have no limits.
type Manager struct {
	mu       sync.RWMutex
	backends map[string]*state
}

// NewManager creates a Manager with the given backend configurations.
func NewManager(configs ...Config) *Manager {
	m := &Manager{backends: make(map[string]*state, len(configs))}
	for _, cfg := range configs {
		m.backends[cfg.Backend] = newState(cfg)
	}
	return m
}

// Acquire blocks until the backend has rate and concurrency capacity,
// or the context is cancelled. The caller MUST call Release when the
// leg completes. Unconfigured backends acquire immediately.
func (m *Manager) Acquire(ctx context.Context, backend string) error {
	m.mu.RLock()
	st := m.backends[backend]
	m.mu.RUnlock()

	if st == nil {
		return nil
	}
	if st.limiter != nil {
		if err := st.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if st.sem != nil {
		select {
		case st.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release frees one concurrency slot for the backend.
func (m *Manager) Release(backend string) {
	m.mu.RLock()
	st := m.backends[backend]
	m.mu.RUnlock()

	if st == nil || st.sem == nil {
		return
	}
	select {
	case <-st.sem:
	default:
	}
}

// SetConfig dynamically updates (or creates) a backend configuration.
// Legs already holding a slot drain against the previous configuration.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[cfg.Backend] = newState(cfg)
}

// ActiveCount returns the current number of held slots for a backend.
// Backends without a concurrency cap always report 0.
func (m *Manager) ActiveCount(backend string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st := m.backends[backend]; st != nil && st.sem != nil {
		return len(st.sem)
	}
	return 0
}
