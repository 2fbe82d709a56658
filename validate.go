package queueservice

import "strings"

// Request fields an operation can tell the validator to skip.
const fieldKey = "key"

// skipKey is the skip-set used by the list operations, which do not
// address a single item.
var skipKey = map[string]struct{}{fieldKey: {}}

// validate checks the request invariants shared by every operation, in
// fixed order, short-circuiting at the first failure. It never touches
// backend state and performs no I/O.
func validate(req Request, skip map[string]struct{}) error {
	if req.Identifier == "" && req.Key == "" && req.Value == nil && req.Stores == nil {
		return ErrEmptyRequest
	}
	if strings.TrimSpace(req.Identifier) == "" {
		return ErrMissingIdentifier
	}
	if _, ok := skip[fieldKey]; !ok {
		if strings.TrimSpace(req.Key) == "" {
			return ErrMissingKey
		}
	}
	if req.Stores != nil && len(req.Stores) == 0 {
		return ErrEmptyStoreFilter
	}
	return nil
}
