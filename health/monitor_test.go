package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheck_ReportsPerTargetOutcome(t *testing.T) {
	boom := errors.New("connection refused")
	m := New(map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return nil }),
		"mongo": pingFunc(func(context.Context) error { return boom }),
	}, WithLogger(quietLogger()))

	results := m.Check(context.Background())
	if len(results) != 2 {
		t.Fatalf("Check returned %d results, want 2", len(results))
	}
	if results["redis"] != nil {
		t.Fatalf("redis = %v, want nil", results["redis"])
	}
	if !errors.Is(results["mongo"], boom) {
		t.Fatalf("mongo = %v, want boom", results["mongo"])
	}
}

func TestCheck_FailingTargetDoesNotAbortSweep(t *testing.T) {
	var pinged atomic.Int32
	m := New(map[string]Pinger{
		"a": pingFunc(func(context.Context) error { pinged.Add(1); return errors.New("down") }),
		"b": pingFunc(func(context.Context) error { pinged.Add(1); return nil }),
		"c": pingFunc(func(context.Context) error { pinged.Add(1); return nil }),
	}, WithLogger(quietLogger()))

	m.Check(context.Background())
	if got := pinged.Load(); got != 3 {
		t.Fatalf("pinged %d targets, want 3", got)
	}
}

func TestLast(t *testing.T) {
	boom := errors.New("down")
	m := New(map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return boom }),
	}, WithLogger(quietLogger()))

	if err := m.Last("redis"); err != nil {
		t.Fatalf("Last before any sweep = %v, want nil", err)
	}

	m.Check(context.Background())
	if err := m.Last("redis"); !errors.Is(err, boom) {
		t.Fatalf("Last after sweep = %v, want boom", err)
	}
	if err := m.Last("never-configured"); err != nil {
		t.Fatalf("Last for unknown target = %v, want nil", err)
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	m := New(nil, WithSchedule("not a schedule"), WithLogger(quietLogger()))
	if err := m.Start(); err == nil {
		t.Fatal("Start should reject an unparsable schedule")
	}
}

func TestStartStop_SweepRuns(t *testing.T) {
	var swept atomic.Int32
	m := New(map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { swept.Add(1); return nil }),
	}, WithSchedule("@every 100ms"), WithLogger(quietLogger()))

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for swept.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no sweep ran within 3s")
		case <-time.After(20 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Last("redis"); err != nil {
		t.Fatalf("Last after sweep = %v, want nil", err)
	}
}
