// Package memory provides a fully in-memory backend.Adapter. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bikramjeet/queue-service/backend"
)

// Compile-time interface check.
var _ backend.Adapter = (*Adapter)(nil)

func init() {
	backend.Register(backend.KindMemory, func(_ context.Context, _ backend.Params) (backend.Adapter, error) {
		return New(), nil
	})
}

// Adapter stores groups as nested maps guarded by a single RWMutex.
type Adapter struct {
	mu     sync.RWMutex
	groups map[string]map[string][]byte
}

// New returns a new empty Adapter.
func New() *Adapter {
	return &Adapter{groups: make(map[string]map[string][]byte)}
}

// GetField returns a copy of the stored value, or ok=false when absent.
func (a *Adapter) GetField(_ context.Context, group, field string) ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	v, ok := a.groups[group][field]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

// SetField stores a copy of value, creating the group if needed.
func (a *Adapter) SetField(_ context.Context, group, field string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[group]
	if !ok {
		g = make(map[string][]byte)
		a.groups[group] = g
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	g[field] = cp
	return nil
}

// DeleteField removes the field and reports whether it existed.
func (a *Adapter) DeleteField(_ context.Context, group, field string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[group]
	if !ok {
		return false, nil
	}
	if _, ok := g[field]; !ok {
		return false, nil
	}
	delete(g, field)
	if len(g) == 0 {
		delete(a.groups, group)
	}
	return true, nil
}

// ListFields returns the group's field names in lexical order.
func (a *Adapter) ListFields(_ context.Context, group string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	g := a.groups[group]
	fields := make([]string, 0, len(g))
	for f := range g {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, nil
}

// Ping always succeeds for the memory adapter.
func (a *Adapter) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory adapter.
func (a *Adapter) Close(_ context.Context) error { return nil }
