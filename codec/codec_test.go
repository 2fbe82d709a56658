package codec

import (
	"reflect"
	"testing"
)

type payload struct {
	Kind    string   `json:"kind" msgpack:"kind"`
	Targets []string `json:"targets" msgpack:"targets"`
	Retries int      `json:"retries" msgpack:"retries"`
}

func TestJSON_Roundtrip(t *testing.T) {
	c := &JSON{}
	if c.Name() != NameJSON {
		t.Fatalf("Name() = %q, want %q", c.Name(), NameJSON)
	}

	in := payload{Kind: "email", Targets: []string{"a", "b"}, Retries: 3}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out payload
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", out, in)
	}
}

func TestMsgpack_Roundtrip(t *testing.T) {
	c := &Msgpack{}
	if c.Name() != NameMsgpack {
		t.Fatalf("Name() = %q, want %q", c.Name(), NameMsgpack)
	}

	in := payload{Kind: "sms", Targets: []string{"x"}, Retries: 1}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out payload
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", out, in)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{NameJSON, NameJSON},
		{NameMsgpack, NameMsgpack},
		{"", NameJSON},
		{"protobuf", NameJSON}, // unknown names fall back to JSON
	}
	for _, tt := range tests {
		if got := Get(tt.name).Name(); got != tt.want {
			t.Fatalf("Get(%q).Name() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
