package middleware

import (
	"context"
	"time"
)

// Operation describes one dispatch call flowing through the chain.
type Operation struct {
	// ID is a per-call correlation identifier.
	ID string

	// Name is the operation name ("insert", "get", "list_keys",
	// "entries", "delete").
	Name string

	// Identifier is the logical group the operation addresses.
	Identifier string

	// Key is the item key, when the operation addresses a single item.
	Key string

	// Timeout bounds the operation when non-zero.
	Timeout time.Duration
}

// Handler is the terminal function that executes the operation.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the operation being executed, and the next handler
// to call. Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, op *Operation, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recov, timeout) executes as:
//
//	logging → recov → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, op *Operation, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, op, prev)
			}
		}
		return h(ctx)
	}
}
