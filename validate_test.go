package queueservice

import (
	"errors"
	"testing"
)

func TestValidate_FixedOrder(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		skip map[string]struct{}
		want error
	}{
		{
			name: "empty request",
			req:  Request{},
			want: ErrEmptyRequest,
		},
		{
			name: "missing identifier",
			req:  Request{Key: "k1"},
			want: ErrMissingIdentifier,
		},
		{
			name: "blank identifier after trim",
			req:  Request{Identifier: "   ", Key: "k1"},
			want: ErrMissingIdentifier,
		},
		{
			name: "missing key",
			req:  Request{Identifier: "orders"},
			want: ErrMissingKey,
		},
		{
			name: "blank key after trim",
			req:  Request{Identifier: "orders", Key: " \t "},
			want: ErrMissingKey,
		},
		{
			name: "key skipped for list operations",
			req:  Request{Identifier: "orders"},
			skip: skipKey,
			want: nil,
		},
		{
			name: "empty store filter",
			req:  Request{Identifier: "orders", Key: "k1", Stores: []string{}},
			want: ErrEmptyStoreFilter,
		},
		{
			name: "nil store filter is no filter",
			req:  Request{Identifier: "orders", Key: "k1"},
			want: nil,
		},
		{
			name: "populated store filter",
			req:  Request{Identifier: "orders", Key: "k1", Stores: []string{"redis"}},
			want: nil,
		},
		{
			name: "identifier checked before key",
			req:  Request{Identifier: "", Key: ""},
			want: ErrEmptyRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.req, tt.skip)
			if !errors.Is(err, tt.want) {
				t.Fatalf("validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_EmptyFilterBeatsMissingValueChecks(t *testing.T) {
	// The validator owns the store filter invariant even when the
	// operation skips the key check.
	err := validate(Request{Identifier: "orders", Stores: []string{}}, skipKey)
	if !errors.Is(err, ErrEmptyStoreFilter) {
		t.Fatalf("validate() = %v, want ErrEmptyStoreFilter", err)
	}
}
