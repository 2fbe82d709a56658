package queueservice

import "github.com/bikramjeet/queue-service/backend"

// BackendConfig describes one backing store supplied at construction.
// The map handed to New is keyed by backend kind; each kind appears at
// most once.
type BackendConfig struct {
	// Params are connection parameters handed to the backend registry
	// when Adapter is nil. Their keys are backend-specific and opaque
	// to the core.
	Params backend.Params

	// Adapter, when non-nil, is a pre-built connection handle. The
	// caller owns its lifecycle; Service.Close will not touch it.
	Adapter backend.Adapter

	// DisplayName prefixes registration records for this backend:
	// the meta-group field for an identifier is
	// "{DisplayName}_{identifier}".
	DisplayName string

	// Identifiers are the logical group names permitted on this
	// backend. Entries are trimmed; blank entries are silently skipped.
	Identifiers []string
}
