package queueservice

import "errors"

var (
	// Configuration errors, fatal at construction.
	ErrEmptyConfig        = errors.New("queueservice: no backend configuration provided")
	ErrMissingDisplayName = errors.New("queueservice: backend display name is required")

	// Validation errors.
	ErrEmptyRequest      = errors.New("queueservice: empty request")
	ErrMissingIdentifier = errors.New("queueservice: identifier is required")
	ErrMissingKey        = errors.New("queueservice: key is required")
	ErrMissingValue      = errors.New("queueservice: value is required")
	ErrEmptyStoreFilter  = errors.New("queueservice: store filter must not be empty")
	ErrNoBackendSelected = errors.New("queueservice: store filter matched no configured backend")

	// Registration errors.
	ErrNotRegistered = errors.New("queueservice: identifier not registered for backend")
)
