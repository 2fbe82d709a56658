package queueservice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	qs "github.com/bikramjeet/queue-service"
	"github.com/bikramjeet/queue-service/backend"
	"github.com/bikramjeet/queue-service/backend/memory"
	"github.com/bikramjeet/queue-service/throttle"
)

// countingAdapter wraps another adapter and counts calls. metaWrites
// counts writes to the registration meta-group only.
type countingAdapter struct {
	backend.Adapter

	mu         sync.Mutex
	setCalls   int
	metaWrites int
}

func (c *countingAdapter) SetField(ctx context.Context, group, field string, value []byte) error {
	c.mu.Lock()
	c.setCalls++
	if group == metaGroup {
		c.metaWrites++
	}
	c.mu.Unlock()
	return c.Adapter.SetField(ctx, group, field, value)
}

func (c *countingAdapter) reset() {
	c.mu.Lock()
	c.setCalls, c.metaWrites = 0, 0
	c.mu.Unlock()
}

func (c *countingAdapter) counts() (set, meta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setCalls, c.metaWrites
}

// newService builds a single-backend Service over the given adapter.
func newService(t *testing.T, adapter backend.Adapter, identifiers ...string) *qs.Service {
	t.Helper()
	svc, err := qs.New(context.Background(), map[string]qs.BackendConfig{
		"memory": {Adapter: adapter, DisplayName: "svc", Identifiers: identifiers},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

// ---------------------------------------------------------------------------
// Insert / Get / Delete
// ---------------------------------------------------------------------------

func TestInsertGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), "orders")

	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o1", Value: "hello"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := svc.Get(ctx, qs.Request{Identifier: "orders", Key: "o1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := results[backend.KindMemory]; !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("Get = %q, want %q", got, "hello")
	}
}

func TestInsert_EncodesStructThroughCodec(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), "orders")

	payload := map[string][]string{"targetType": {"email"}}
	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o1", Value: payload}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := svc.Get(ctx, qs.Request{Identifier: "orders", Key: "o1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var decoded map[string][]string
	if err := json.Unmarshal(results[backend.KindMemory], &decoded); err != nil {
		t.Fatalf("decode stored value: %v", err)
	}
	if !reflect.DeepEqual(decoded, payload) {
		t.Fatalf("roundtrip = %v, want %v", decoded, payload)
	}
}

func TestInsert_MissingValue(t *testing.T) {
	svc := newService(t, memory.New(), "orders")
	err := svc.Insert(context.Background(), qs.Request{Identifier: "orders", Key: "o1"})
	if !errors.Is(err, qs.ErrMissingValue) {
		t.Fatalf("Insert = %v, want ErrMissingValue", err)
	}
}

func TestGet_AbsentKeyIsNotAnError(t *testing.T) {
	svc := newService(t, memory.New(), "orders")

	results, err := svc.Get(context.Background(), qs.Request{Identifier: "orders", Key: "nope"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for absent key, got %v", results)
	}
}

func TestDeleteThenGet(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), "orders")

	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o1", Value: "v"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := svc.Delete(ctx, qs.Request{Identifier: "orders", Key: "o1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := svc.Get(ctx, qs.Request{Identifier: "orders", Key: "o1"})
	if err != nil {
		t.Fatalf("Get after Delete: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result after Delete, got %v", results)
	}

	// Deleting an absent key acknowledges without error.
	if err := svc.Delete(ctx, qs.Request{Identifier: "orders", Key: "o1"}); err != nil {
		t.Fatalf("Delete absent key: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ListKeys / Entries
// ---------------------------------------------------------------------------

func TestListKeys(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), "orders")

	for _, k := range []string{"b", "a", "c"} {
		if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: k, Value: "v"}); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}

	results, err := svc.ListKeys(ctx, qs.Request{Identifier: "orders"})
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(results[backend.KindMemory], want) {
		t.Fatalf("ListKeys = %v, want %v", results[backend.KindMemory], want)
	}
}

func TestEntries_OmitsEmptyValues(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), "orders")

	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o1", Value: "v1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o2", Value: "v2"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Empty payloads are stored but dropped from Entries results.
	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "empty", Value: ""}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := svc.Entries(ctx, qs.Request{Identifier: "orders"})
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	entries := results[backend.KindMemory]
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), entries)
	}
	if !bytes.Equal(entries["o1"], []byte("v1")) || !bytes.Equal(entries["o2"], []byte("v2")) {
		t.Fatalf("Entries = %v", entries)
	}
	if _, ok := entries["empty"]; ok {
		t.Fatal("Entries should omit keys with empty values")
	}
}

// ---------------------------------------------------------------------------
// Read bookkeeping
// ---------------------------------------------------------------------------

func TestEntries_SingleRegistrationTouchPerBatch(t *testing.T) {
	ctx := context.Background()
	counting := &countingAdapter{Adapter: memory.New()}
	svc := newService(t, counting, "orders")

	for _, k := range []string{"o1", "o2", "o3"} {
		if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: k, Value: "v"}); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}
	counting.reset()

	if _, err := svc.Entries(ctx, qs.Request{Identifier: "orders"}); err != nil {
		t.Fatalf("Entries: %v", err)
	}

	if _, meta := counting.counts(); meta != 1 {
		t.Fatalf("Entries performed %d registration updates, want exactly 1", meta)
	}
}

func TestGet_RefreshesRegistrationOnNonEmptyRead(t *testing.T) {
	ctx := context.Background()
	counting := &countingAdapter{Adapter: memory.New()}
	svc := newService(t, counting, "orders")

	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o1", Value: "v"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	counting.reset()

	if _, err := svc.Get(ctx, qs.Request{Identifier: "orders", Key: "o1"}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, meta := counting.counts(); meta != 1 {
		t.Fatalf("Get of present key made %d registration updates, want 1", meta)
	}

	counting.reset()
	if _, err := svc.Get(ctx, qs.Request{Identifier: "orders", Key: "absent"}); err != nil {
		t.Fatalf("Get absent: %v", err)
	}
	if _, meta := counting.counts(); meta != 0 {
		t.Fatalf("Get of absent key made %d registration updates, want 0", meta)
	}
}

func TestEntries_ConcurrentCallsDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), "orders")

	for _, k := range []string{"o1", "o2"} {
		if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: k, Value: "v"}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := svc.Entries(ctx, qs.Request{Identifier: "orders"})
			if err != nil {
				t.Errorf("Entries: %v", err)
				return
			}
			if len(results[backend.KindMemory]) != 2 {
				t.Errorf("Entries = %v, want 2 entries", results[backend.KindMemory])
			}
		}()
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// Store filter and registration enforcement
// ---------------------------------------------------------------------------

// newTwoBackendService configures the memory kind plus a second kind
// ("redis") whose adapter is also an in-memory fake, so fan-out paths
// are observable without a server.
func newTwoBackendService(t *testing.T, memIDs, redisIDs []string) (*qs.Service, *countingAdapter, *countingAdapter) {
	t.Helper()
	memA := &countingAdapter{Adapter: memory.New()}
	memB := &countingAdapter{Adapter: memory.New()}
	svc, err := qs.New(context.Background(), map[string]qs.BackendConfig{
		"memory": {Adapter: memA, DisplayName: "svc", Identifiers: memIDs},
		"redis":  {Adapter: memB, DisplayName: "svc", Identifiers: redisIDs},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	memA.reset()
	memB.reset()
	return svc, memA, memB
}

func TestStoreFilter_RestrictsExecution(t *testing.T) {
	ctx := context.Background()
	svc, memA, memB := newTwoBackendService(t, []string{"orders"}, []string{"orders"})

	err := svc.Insert(ctx, qs.Request{
		Identifier: "orders", Key: "o1", Value: "v",
		Stores: []string{"memory"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if set, _ := memA.counts(); set != 1 {
		t.Fatalf("filtered-in backend saw %d writes, want 1", set)
	}
	if set, _ := memB.counts(); set != 0 {
		t.Fatalf("filtered-out backend saw %d writes, want 0", set)
	}
}

func TestStoreFilter_NilFansOutToAll(t *testing.T) {
	ctx := context.Background()
	svc, memA, memB := newTwoBackendService(t, []string{"orders"}, []string{"orders"})

	if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o1", Value: "v"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	setA, _ := memA.counts()
	setB, _ := memB.counts()
	if setA != 1 || setB != 1 {
		t.Fatalf("expected one write per backend, got memory=%d redis=%d", setA, setB)
	}
}

func TestStoreFilter_EmptyIsValidationError(t *testing.T) {
	svc := newService(t, memory.New(), "orders")
	err := svc.Insert(context.Background(), qs.Request{
		Identifier: "orders", Key: "o1", Value: "v", Stores: []string{},
	})
	if !errors.Is(err, qs.ErrEmptyStoreFilter) {
		t.Fatalf("Insert = %v, want ErrEmptyStoreFilter", err)
	}
}

func TestStoreFilter_UnknownKindsOnly(t *testing.T) {
	svc := newService(t, memory.New(), "orders")
	err := svc.Insert(context.Background(), qs.Request{
		Identifier: "orders", Key: "o1", Value: "v", Stores: []string{"mystery"},
	})
	if !errors.Is(err, qs.ErrNoBackendSelected) {
		t.Fatalf("Insert = %v, want ErrNoBackendSelected", err)
	}
}

func TestUnregisteredIdentifier_OtherLegStillRuns(t *testing.T) {
	ctx := context.Background()
	// "orders" is registered on the memory backend only.
	svc, memA, memB := newTwoBackendService(t, []string{"orders"}, []string{"billing"})

	err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: "o1", Value: "v"})
	if !errors.Is(err, qs.ErrNotRegistered) {
		t.Fatalf("Insert = %v, want ErrNotRegistered", err)
	}

	// The registered leg executed despite the other leg's failure.
	if set, _ := memA.counts(); set != 1 {
		t.Fatalf("registered backend saw %d writes, want 1", set)
	}
	if set, _ := memB.counts(); set != 0 {
		t.Fatalf("unregistered backend saw %d writes, want 0", set)
	}
}

// ---------------------------------------------------------------------------
// Throttling
// ---------------------------------------------------------------------------

func TestThrottledDispatchStillExecutesEveryLeg(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, err := qs.New(ctx, map[string]qs.BackendConfig{
		"memory": {Adapter: mem, DisplayName: "svc", Identifiers: []string{"orders"}},
	}, qs.WithThrottle(throttle.NewManager(throttle.Config{
		Backend:        "memory",
		MaxConcurrency: 1,
		RateLimit:      1000,
	})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, k := range []string{"o1", "o2", "o3"} {
		if err := svc.Insert(ctx, qs.Request{Identifier: "orders", Key: k, Value: "v"}); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}

	results, err := svc.ListKeys(ctx, qs.Request{Identifier: "orders"})
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(results[backend.KindMemory]) != 3 {
		t.Fatalf("ListKeys = %v, want 3 keys", results[backend.KindMemory])
	}
}
