// Package backend defines the adapter contract a backing store must
// satisfy and the kind-keyed registry used to open adapters from opaque
// connection parameters.
//
// An Adapter addresses a hash-style store: named groups holding
// field/value pairs. Backends: Redis, Postgres, Bun, Mongo, and Memory.
// Each backend package registers itself on import, so opening a kind
// through the registry only requires a blank import of its package:
//
//	import _ "github.com/bikramjeet/queue-service/backend/redis"
//
//	a, err := backend.Open(ctx, backend.KindRedis, backend.Params{"addr": "localhost:6379"})
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Kind identifies a backend implementation.
type Kind string

// Built-in backend kinds.
const (
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
	KindBun      Kind = "bun"
	KindMongo    Kind = "mongo"
	KindMemory   Kind = "memory"
)

// ErrUnknownKind is returned by Open for a kind with no registered opener.
var ErrUnknownKind = errors.New("backend: unknown backend kind")

// Params carries connection parameters for an opener. The keys are
// backend-specific ("addr", "dsn", "uri", ...) and opaque to the core.
type Params map[string]string

// Adapter is the contract every backing store satisfies. Groups and
// fields are non-blank strings; values are opaque bytes the core never
// interprets beyond emptiness checks.
type Adapter interface {
	// GetField reads one field of a group. ok is false when the field
	// is absent; absence is not an error.
	GetField(ctx context.Context, group, field string) (value []byte, ok bool, err error)

	// SetField writes one field of a group, creating the group if needed.
	SetField(ctx context.Context, group, field string, value []byte) error

	// DeleteField removes one field of a group. existed reports whether
	// the field was present; deleting an absent field is not an error.
	DeleteField(ctx context.Context, group, field string) (existed bool, err error)

	// ListFields returns the field names of a group in lexical order.
	// An absent group lists as empty.
	ListFields(ctx context.Context, group string) ([]string, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources the adapter owns. Adapters built around
	// a caller-supplied client treat Close as a no-op.
	Close(ctx context.Context) error
}

// OpenFunc opens an Adapter from connection parameters.
type OpenFunc func(ctx context.Context, params Params) (Adapter, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[Kind]OpenFunc)
)

// Register makes an opener available under the given kind. It is
// intended to be called from backend package init functions and panics
// on a duplicate kind, same as database/sql driver registration.
func Register(kind Kind, open OpenFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if open == nil {
		panic("backend: Register with nil OpenFunc")
	}
	if _, dup := openers[kind]; dup {
		panic(fmt.Sprintf("backend: Register called twice for kind %q", kind))
	}
	openers[kind] = open
}

// Known reports whether an opener is registered for the kind.
func Known(kind Kind) bool {
	openersMu.RLock()
	defer openersMu.RUnlock()
	_, ok := openers[kind]
	return ok
}

// Open builds an Adapter for the kind using its registered opener.
func Open(ctx context.Context, kind Kind, params Params) (Adapter, error) {
	openersMu.RLock()
	open := openers[kind]
	openersMu.RUnlock()

	if open == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return open(ctx, params)
}

// Kinds returns the registered kinds in lexical order.
func Kinds() []Kind {
	openersMu.RLock()
	defer openersMu.RUnlock()

	kinds := make([]Kind, 0, len(openers))
	for k := range openers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
