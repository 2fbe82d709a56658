package queueservice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bikramjeet/queue-service/backend"
	"github.com/bikramjeet/queue-service/middleware"
)

// Insert writes the value under the key within the identifier's group
// on every selected backend. Legs succeed or fail independently; the
// returned error names the first backend that failed.
func (s *Service) Insert(ctx context.Context, req Request) error {
	if err := validate(req, nil); err != nil {
		return err
	}
	if req.Value == nil {
		return ErrMissingValue
	}
	payload, err := s.encode(req.Value)
	if err != nil {
		return err
	}
	normalize(&req)

	return s.run(ctx, "insert", req, func(ctx context.Context) error {
		return s.fanOut(ctx, req, func(ctx context.Context, kind backend.Kind, reg *registration) error {
			if err := reg.adapter.SetField(ctx, req.Identifier, req.Key, payload); err != nil {
				return fmt.Errorf("set field: %w", err)
			}
			return nil
		})
	})
}

// Get reads the key on every selected backend. An absent value
// contributes no map entry for that backend and is not an error. A
// successful non-empty read refreshes the identifier's registration
// timestamp as a side effect; a failure of that bookkeeping write is
// reported as that leg's error.
func (s *Service) Get(ctx context.Context, req Request) (map[backend.Kind][]byte, error) {
	if err := validate(req, nil); err != nil {
		return nil, err
	}
	normalize(&req)

	stamp := time.Now().UTC().Format(stampLayout)
	results := make(map[backend.Kind][]byte)
	var mu sync.Mutex

	err := s.run(ctx, "get", req, func(ctx context.Context) error {
		return s.fanOut(ctx, req, func(ctx context.Context, kind backend.Kind, reg *registration) error {
			v, ok, err := s.readField(ctx, reg, req.Identifier, req.Key, stamp)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				results[kind] = v
				mu.Unlock()
			}
			return nil
		})
	})
	return results, err
}

// ListKeys lists the field names under the identifier's group per
// backend. No timestamp side effect.
func (s *Service) ListKeys(ctx context.Context, req Request) (map[backend.Kind][]string, error) {
	if err := validate(req, skipKey); err != nil {
		return nil, err
	}
	normalize(&req)

	results := make(map[backend.Kind][]string)
	var mu sync.Mutex

	err := s.run(ctx, "list_keys", req, func(ctx context.Context) error {
		return s.fanOut(ctx, req, func(ctx context.Context, kind backend.Kind, reg *registration) error {
			keys, err := reg.adapter.ListFields(ctx, req.Identifier)
			if err != nil {
				return fmt.Errorf("list fields: %w", err)
			}
			mu.Lock()
			results[kind] = keys
			mu.Unlock()
			return nil
		})
	})
	return results, err
}

// Entries lists the keys under the identifier's group and reads each
// one, per backend. Keys whose value came back empty are omitted. The
// whole batch shares one bookkeeping timestamp, taken when the call
// starts, and each backend's registration record is refreshed at most
// once per call regardless of how many keys were read.
func (s *Service) Entries(ctx context.Context, req Request) (map[backend.Kind]map[string][]byte, error) {
	if err := validate(req, skipKey); err != nil {
		return nil, err
	}
	normalize(&req)

	stamp := time.Now().UTC().Format(stampLayout)
	results := make(map[backend.Kind]map[string][]byte)
	var mu sync.Mutex

	err := s.run(ctx, "entries", req, func(ctx context.Context) error {
		return s.fanOut(ctx, req, func(ctx context.Context, kind backend.Kind, reg *registration) error {
			keys, err := reg.adapter.ListFields(ctx, req.Identifier)
			if err != nil {
				return fmt.Errorf("list fields: %w", err)
			}

			entries := make(map[string][]byte, len(keys))
			for _, key := range keys {
				v, ok, err := reg.adapter.GetField(ctx, req.Identifier, key)
				if err != nil {
					return fmt.Errorf("get field: %w", err)
				}
				if ok && len(v) > 0 {
					entries[key] = v
				}
			}
			if len(entries) > 0 {
				if err := s.touchRegistration(ctx, reg, req.Identifier, stamp); err != nil {
					return err
				}
			}

			mu.Lock()
			results[kind] = entries
			mu.Unlock()
			return nil
		})
	})
	return results, err
}

// Delete removes the key from the identifier's group on every selected
// backend. Deleting an absent key is not an error; no timestamp side
// effect.
func (s *Service) Delete(ctx context.Context, req Request) error {
	if err := validate(req, nil); err != nil {
		return err
	}
	normalize(&req)

	return s.run(ctx, "delete", req, func(ctx context.Context) error {
		return s.fanOut(ctx, req, func(ctx context.Context, kind backend.Kind, reg *registration) error {
			if _, err := reg.adapter.DeleteField(ctx, req.Identifier, req.Key); err != nil {
				return fmt.Errorf("delete field: %w", err)
			}
			return nil
		})
	})
}

// ── dispatch internals ──

// normalize trims the addressing fields after validation so legs and
// registration checks see canonical values.
func normalize(req *Request) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	req.Key = strings.TrimSpace(req.Key)
}

// run wraps one operation in the middleware chain.
func (s *Service) run(ctx context.Context, name string, req Request, next middleware.Handler) error {
	op := &middleware.Operation{
		ID:         uuid.NewString(),
		Name:       name,
		Identifier: req.Identifier,
		Key:        req.Key,
		Timeout:    s.timeout,
	}
	return s.chain(ctx, op, next)
}

// fanOut runs leg once per selected backend, concurrently. Legs are
// independent: one leg failing does not stop the others. The first
// error in sorted kind order becomes the operation error, wrapped with
// the backend kind so the caller is told which leg failed.
func (s *Service) fanOut(ctx context.Context, req Request, leg func(ctx context.Context, kind backend.Kind, reg *registration) error) error {
	kinds := s.selectKinds(req.Stores)
	if len(kinds) == 0 {
		return ErrNoBackendSelected
	}

	errs := make(map[backend.Kind]error, len(kinds))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, kind := range kinds {
		reg := s.table[kind]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.runLeg(ctx, kind, reg, req.Identifier, leg); err != nil {
				mu.Lock()
				errs[kind] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, kind := range s.order {
		if err := errs[kind]; err != nil {
			return fmt.Errorf("queueservice/%s: %w", kind, err)
		}
	}
	return nil
}

// runLeg enforces identifier registration and throttling for one
// backend leg, then invokes it.
func (s *Service) runLeg(ctx context.Context, kind backend.Kind, reg *registration, identifier string, leg func(ctx context.Context, kind backend.Kind, reg *registration) error) error {
	if !reg.registered(identifier) {
		return fmt.Errorf("%w: identifier %q, backend %s", ErrNotRegistered, identifier, kind)
	}
	if s.limits != nil {
		if err := s.limits.Acquire(ctx, string(kind)); err != nil {
			return fmt.Errorf("throttle: %w", err)
		}
		defer s.limits.Release(string(kind))
	}
	return leg(ctx, kind, reg)
}

// selectKinds applies the store filter. Nil means every configured
// backend; entries naming unconfigured kinds are ignored. The result
// preserves sorted kind order.
func (s *Service) selectKinds(stores []string) []backend.Kind {
	if stores == nil {
		return s.order
	}
	selected := make(map[backend.Kind]struct{}, len(stores))
	for _, st := range stores {
		kind := backend.Kind(strings.TrimSpace(st))
		if _, ok := s.table[kind]; ok {
			selected[kind] = struct{}{}
		}
	}
	kinds := make([]backend.Kind, 0, len(selected))
	for _, kind := range s.order {
		if _, ok := selected[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// readField reads one field and, when a non-empty value was found,
// refreshes the identifier's registration record with the given stamp.
// The bookkeeping write failing fails the leg the same way the read
// itself would.
func (s *Service) readField(ctx context.Context, reg *registration, identifier, key, stamp string) ([]byte, bool, error) {
	v, ok, err := reg.adapter.GetField(ctx, identifier, key)
	if err != nil {
		return nil, false, fmt.Errorf("get field: %w", err)
	}
	if ok && len(v) > 0 && stamp != "" {
		if err := s.touchRegistration(ctx, reg, identifier, stamp); err != nil {
			return nil, false, err
		}
	}
	return v, ok, nil
}

// touchRegistration overwrites the identifier's registration record
// with the given last-read stamp.
func (s *Service) touchRegistration(ctx context.Context, reg *registration, identifier, stamp string) error {
	if err := reg.adapter.SetField(ctx, metaGroup, reg.regKey(identifier), []byte(stamp)); err != nil {
		return fmt.Errorf("touch registration: %w", err)
	}
	return nil
}

// encode turns an insert payload into bytes. Byte slices and strings
// pass through unchanged; everything else goes through the configured
// codec.
func (s *Service) encode(v any) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		b, err := s.codec.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("queueservice: encode value: %w", err)
		}
		return b, nil
	}
}
