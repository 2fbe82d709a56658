package queueservice

// Request describes one dispatch call. Identifier and Key are trimmed
// before use; validation rejects values that are blank after trimming.
type Request struct {
	// Identifier is the logical group name (a queue or topic) the
	// operation addresses.
	Identifier string

	// Key addresses a single item within the group. Required for
	// Insert, Get, and Delete; ignored by the list operations.
	Key string

	// Value is the payload for Insert. []byte and string pass through
	// unchanged; anything else is encoded with the service codec.
	Value any

	// Stores optionally restricts which backend kinds participate.
	// Nil means every configured backend. A present-but-empty filter
	// is a validation error; entries naming unconfigured kinds are
	// ignored.
	Stores []string
}
