// Package health provides a cron-scheduled liveness monitor over a set
// of pingable targets, typically the backends behind a queue Service.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"golang.org/x/sync/errgroup"
)

// Pinger checks liveness of one target. backend.Adapter satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// scheduleParser supports standard 5-field cron and descriptors like
// "@every 30s".
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithSchedule sets the sweep schedule (default "@every 30s").
func WithSchedule(expr string) Option {
	return func(m *Monitor) { m.schedule = expr }
}

// WithTimeout sets the per-sweep deadline (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// Monitor periodically pings each target and records the latest
// outcome. It is safe for concurrent use.
type Monitor struct {
	targets  map[string]Pinger
	schedule string
	timeout  time.Duration
	logger   *slog.Logger

	cron *cronlib.Cron

	mu   sync.RWMutex
	last map[string]error
}

// New creates a Monitor over the given targets, keyed by backend name.
func New(targets map[string]Pinger, opts ...Option) *Monitor {
	m := &Monitor{
		targets:  targets,
		schedule: "@every 30s",
		timeout:  5 * time.Second,
		logger:   slog.Default(),
		last:     make(map[string]error, len(targets)),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start begins the background sweep loop. The first sweep runs when the
// schedule first fires, not at Start.
func (m *Monitor) Start() error {
	c := cronlib.New(cronlib.WithParser(scheduleParser))
	if _, err := c.AddFunc(m.schedule, m.sweep); err != nil {
		return err
	}
	m.cron = c
	c.Start()
	m.logger.Info("health monitor started",
		slog.String("schedule", m.schedule),
		slog.Int("targets", len(m.targets)),
	)
	return nil
}

// Stop halts the sweep loop and waits for a running sweep to finish,
// bounded by ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cron == nil {
		return nil
	}
	done := m.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sweep is the scheduled entry point.
func (m *Monitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for name, err := range m.Check(ctx) {
		if err != nil {
			m.logger.Warn("backend unhealthy",
				slog.String("backend", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Check pings every target concurrently and returns the per-target
// outcome. A failing target does not abort the sweep; its error is
// recorded and returned alongside the others.
func (m *Monitor) Check(ctx context.Context) map[string]error {
	results := make(map[string]error, len(m.targets))
	var resMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for name, target := range m.targets {
		g.Go(func() error {
			err := target.Ping(gctx)
			resMu.Lock()
			results[name] = err
			resMu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines always return nil; errors live in results

	m.mu.Lock()
	for name, err := range results {
		m.last[name] = err
	}
	m.mu.Unlock()

	return results
}

// Last returns the most recent sweep outcome for a target. A target
// never swept reports nil.
func (m *Monitor) Last(backend string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last[backend]
}
