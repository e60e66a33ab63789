package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(tb testing.TB, opts ...Option) *SQLiteStore {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "history.db")
	store, err := Open(path, opts...)
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	run := Run{
		ID:            "run-1",
		AlgorithmID:   "7",
		Algorithm:     "ASAP Scheduling",
		Success:       true,
		Applied:       true,
		ExecutionTime: 420,
		Violations:    2,
		Metrics:       map[string]int{"makespan": 3, "onTimeDelivery": 80},
		CreatedAt:     created,
	}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Algorithm != run.Algorithm || !got.Success || !got.Applied || got.ExecutionTime != 420 || got.Violations != 2 {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Metrics["makespan"] != 3 || got.Metrics["onTimeDelivery"] != 80 {
		t.Errorf("unexpected metrics: %v", got.Metrics)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}

	if err := store.Record(ctx, run); err == nil {
		t.Error("expected duplicate id to fail")
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Record(ctx, Run{}); !errors.Is(err, ErrInvalidRun) {
		t.Errorf("expected ErrInvalidRun, got %v", err)
	}
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	tick := 0
	store := newTestStore(t, WithMaxLimit(3), WithClock(func() time.Time {
		tick++
		// Sub-second steps check ordering of fractional timestamps.
		return base.Add(time.Duration(tick) * 500 * time.Millisecond)
	}))

	for i := 1; i <= 5; i++ {
		if err := store.Record(ctx, Run{ID: fmt.Sprintf("run-%d", i), AlgorithmID: "7", Algorithm: "asap"}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	n, err := store.Count(ctx)
	if err != nil || n != 5 {
		t.Fatalf("expected 5 runs, got %d (%v)", n, err)
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-5" || runs[1].ID != "run-4" {
		t.Errorf("unexpected order: %+v", runs)
	}
	if runs[0].Metrics != nil {
		t.Errorf("expected empty metrics to decode as nil, got %v", runs[0].Metrics)
	}

	runs, err = store.List(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("expected limit capped at 3, got %d", len(runs))
	}

	if _, err := store.List(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestSQLiteStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if err := store.Record(ctx, Run{ID: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := store.List(ctx, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("expected error for empty dsn")
	}
}
