package queueservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bikramjeet/queue-service/backend"
	"github.com/bikramjeet/queue-service/codec"
	"github.com/bikramjeet/queue-service/middleware"
	"github.com/bikramjeet/queue-service/throttle"
)

// metaGroup is the reserved group holding one first-seen timestamp per
// "{displayName}_{identifier}" registration record. Reads refresh the
// record as last-read bookkeeping.
const metaGroup = "registeredServices"

// stampLayout is the registration timestamp format, second precision.
const stampLayout = time.RFC3339

// registration is one entry in the registration table: the connection
// handle, the display name, and the identifiers permitted on this
// backend.
type registration struct {
	adapter     backend.Adapter
	displayName string
	identifiers map[string]struct{}

	// owned marks adapters the constructor opened; Close closes them.
	owned bool
}

// registered reports whether the identifier is permitted on this
// backend.
func (r *registration) registered(identifier string) bool {
	_, ok := r.identifiers[identifier]
	return ok
}

// regKey derives the meta-group field name for an identifier.
func (r *registration) regKey(identifier string) string {
	return r.displayName + "_" + identifier
}

// Service routes queue operations across the configured backends. The
// registration table is immutable after New returns; a Service is safe
// for concurrent use.
type Service struct {
	logger   *slog.Logger
	codec    codec.Codec
	limits   *throttle.Manager
	extraMws []middleware.Middleware
	chain    middleware.Middleware
	timeout  time.Duration

	table map[backend.Kind]*registration

	// order is the sorted list of configured kinds. It fixes which
	// leg's error surfaces first when several legs fail.
	order []backend.Kind
}

// New builds the registration table and returns a ready Service. It
// fails if the configuration is empty, a backend kind is unrecognized,
// a display name is blank, or any identifier registration write fails;
// no partially built Service is ever returned. Adapters New opened
// itself are closed on abort.
func New(ctx context.Context, configs map[string]BackendConfig, opts ...Option) (*Service, error) {
	if len(configs) == 0 {
		return nil, ErrEmptyConfig
	}

	s := &Service{
		logger: slog.Default(),
		codec:  codec.Get(codec.NameJSON),
		table:  make(map[backend.Kind]*registration, len(configs)),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	defaultMws := []middleware.Middleware{
		middleware.Recover(s.logger),
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.Logging(s.logger),
		middleware.Timeout(s.logger),
	}
	s.chain = middleware.Chain(append(defaultMws, s.extraMws...)...)

	for kindStr, cfg := range configs {
		kind := backend.Kind(kindStr)
		if !backend.Known(kind) {
			s.closeOwned(ctx)
			return nil, fmt.Errorf("queueservice: configure backend: %w: %q", backend.ErrUnknownKind, kind)
		}
		if strings.TrimSpace(cfg.DisplayName) == "" {
			s.closeOwned(ctx)
			return nil, fmt.Errorf("%w (backend %s)", ErrMissingDisplayName, kind)
		}

		adapter := cfg.Adapter
		owned := false
		if adapter == nil {
			var err error
			adapter, err = backend.Open(ctx, kind, cfg.Params)
			if err != nil {
				s.closeOwned(ctx)
				return nil, fmt.Errorf("queueservice: open backend %s: %w", kind, err)
			}
			owned = true
		}

		s.table[kind] = &registration{
			adapter:     adapter,
			displayName: strings.TrimSpace(cfg.DisplayName),
			identifiers: make(map[string]struct{}),
			owned:       owned,
		}
	}

	// Register identifiers concurrently across backends. Any failure
	// aborts construction.
	g, gctx := errgroup.WithContext(ctx)
	for kind, reg := range s.table {
		cfg := configs[string(kind)]
		g.Go(func() error {
			return s.registerIdentifiers(gctx, kind, reg, cfg.Identifiers)
		})
	}
	if err := g.Wait(); err != nil {
		s.closeOwned(ctx)
		return nil, err
	}

	s.order = make([]backend.Kind, 0, len(s.table))
	for kind := range s.table {
		s.order = append(s.order, kind)
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })

	s.logger.Info("queue service ready", slog.Int("backends", len(s.table)))
	return s, nil
}

// registerIdentifiers records a first-seen timestamp for each trimmed,
// non-blank identifier. Registration is keyed by the deterministic
// "{displayName}_{identifier}" field, so re-registration finds the
// existing record and leaves its timestamp untouched.
func (s *Service) registerIdentifiers(ctx context.Context, kind backend.Kind, reg *registration, identifiers []string) error {
	for _, raw := range identifiers {
		identifier := strings.TrimSpace(raw)
		if identifier == "" {
			continue
		}

		key := reg.regKey(identifier)
		_, ok, err := reg.adapter.GetField(ctx, metaGroup, key)
		if err != nil {
			return fmt.Errorf("queueservice: register %q on %s: %w", identifier, kind, err)
		}
		if !ok {
			stamp := time.Now().UTC().Format(stampLayout)
			if err := reg.adapter.SetField(ctx, metaGroup, key, []byte(stamp)); err != nil {
				return fmt.Errorf("queueservice: register %q on %s: %w", identifier, kind, err)
			}
			s.logger.Info("identifier registered",
				slog.String("backend", string(kind)),
				slog.String("identifier", identifier),
				slog.String("first_seen", stamp),
			)
		}
		reg.identifiers[identifier] = struct{}{}
	}
	return nil
}

// closeOwned closes every adapter the constructor opened. Used when
// construction aborts and by Close.
func (s *Service) closeOwned(ctx context.Context) {
	for kind, reg := range s.table {
		if !reg.owned {
			continue
		}
		if err := reg.adapter.Close(ctx); err != nil {
			s.logger.Warn("close backend",
				slog.String("backend", string(kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Backends returns the configured backend kinds in sorted order.
func (s *Service) Backends() []backend.Kind {
	kinds := make([]backend.Kind, len(s.order))
	copy(kinds, s.order)
	return kinds
}

// Adapters returns the live adapters keyed by kind string, e.g. for
// wiring a health.Monitor.
func (s *Service) Adapters() map[string]backend.Adapter {
	adapters := make(map[string]backend.Adapter, len(s.table))
	for kind, reg := range s.table {
		adapters[string(kind)] = reg.adapter
	}
	return adapters
}

// Ping checks connectivity of every backend concurrently; the first
// failure wins.
func (s *Service) Ping(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for kind, reg := range s.table {
		g.Go(func() error {
			if err := reg.adapter.Ping(gctx); err != nil {
				return fmt.Errorf("queueservice: ping %s: %w", kind, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close closes the adapters the Service opened itself. Injected
// adapters stay open; the caller owns them.
func (s *Service) Close(ctx context.Context) error {
	var firstErr error
	for kind, reg := range s.table {
		if !reg.owned {
			continue
		}
		if err := reg.adapter.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("queueservice: close %s: %w", kind, err)
		}
	}
	return firstErr
}
