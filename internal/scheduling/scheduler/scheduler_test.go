package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/connector"
	"github.com/vietddude/ingestor/internal/infra/storage/memory"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeConnector struct {
	mu    sync.Mutex
	errs  []error // returned in order, then nil
	calls []domain.Cursor
}

func (f *fakeConnector) Fetch(ctx context.Context, sourceID domain.SourceID, c domain.Cursor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, c)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type harness struct {
	scheduler *Scheduler
	store     *memory.MemoryStorage
	conn      *fakeConnector
	clock     *fakeClock
	locker    *LocalLocker
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, cfg cursor.Config) *harness {
	t.Helper()

	strategy, err := cursor.New(cfg)
	if err != nil {
		t.Fatalf("cursor.New failed: %v", err)
	}

	store := memory.NewMemoryStorage()
	manager := cursor.NewManager(memory.NewTriggerRepo(store), store)
	clock := &fakeClock{now: t0}
	locker := NewLocalLocker()
	conn := &fakeConnector{}

	s := New(Config{RetryBase: time.Millisecond, RetryMax: time.Millisecond, DispatchAttempts: 3},
		manager, locker, WithClock(clock.Now))
	if err := s.AddSource(Source{
		ID:        "crm",
		Strategy:  strategy,
		Lookback:  cfg.OnboardingLookback,
		Connector: conn,
	}); err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}

	return &harness{scheduler: s, store: store, conn: conn, clock: clock, locker: locker}
}

func iterativeConfig() cursor.Config {
	return cursor.Config{
		Kind:               cursor.KindIterative,
		FullScanFrequency:  30 * 24 * time.Hour,
		OnboardingLookback: 4 * 24 * time.Hour,
		BackwardStepSize:   24 * time.Hour,
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestRunOnce_DispatchesAndCommits(t *testing.T) {
	h := newHarness(t, iterativeConfig())
	ctx := context.Background()

	result, err := h.scheduler.RunOnce(ctx, "crm")
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Skipped || result.Attempts != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Cursor.ScanType != domain.ScanTypeBackward || result.Cursor.Partial {
		t.Errorf("expected onboarding backward leg, got %s", result.Cursor)
	}
	if len(h.conn.calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(h.conn.calls))
	}

	trigger, err := memory.NewTriggerRepo(h.store).Get(ctx, "crm")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if trigger.Version != 1 || trigger.LastFullScan == nil || !trigger.LastFullScan.Equal(t0) {
		t.Errorf("trigger not committed: %+v", trigger)
	}
	if trigger.Phase() != domain.PhaseBackfilling {
		t.Errorf("expected backfilling phase, got %s", trigger.Phase())
	}

	windows, _ := memory.NewWindowRepo(h.store).ListRecent(ctx, "crm", 10)
	if len(windows) != 1 || windows[0].ScanType != domain.ScanTypeBackward || windows[0].Attempts != 1 {
		t.Errorf("unexpected window log %+v", windows)
	}

	status, _ := h.scheduler.Status("crm")
	if status.LastSuccessAt == nil || status.LastError != "" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestRunOnce_WalksBackfillToSteadyState(t *testing.T) {
	h := newHarness(t, iterativeConfig())
	ctx := context.Background()

	var tags []domain.ScanType
	for i := 0; i < 9; i++ {
		h.clock.now = t0.Add(time.Duration(i) * time.Minute)
		result, err := h.scheduler.RunOnce(ctx, "crm")
		if err != nil {
			t.Fatalf("tick %d failed: %v", i, err)
		}
		tags = append(tags, result.Cursor.ScanType)
	}

	expected := []domain.ScanType{
		domain.ScanTypeBackward, domain.ScanTypeForward,
		domain.ScanTypeBackward, domain.ScanTypeForward,
		domain.ScanTypeBackward, domain.ScanTypeForward,
		domain.ScanTypeBackward, domain.ScanTypeForward,
		domain.ScanTypeForward,
	}
	for i := range expected {
		if tags[i] != expected[i] {
			t.Fatalf("tick %d: expected %s, got %s (all: %v)", i, expected[i], tags[i], tags)
		}
	}

	trigger, _ := memory.NewTriggerRepo(h.store).Get(ctx, "crm")
	if trigger.Phase() != domain.PhaseSteady {
		t.Errorf("expected steady phase, got %s", trigger.Phase())
	}
}

func TestRunOnce_RetriesTransientErrors(t *testing.T) {
	h := newHarness(t, iterativeConfig())
	h.conn.errs = []error{errors.New("connection reset"), errors.New("502")}

	result, err := h.scheduler.RunOnce(context.Background(), "crm")
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}

	windows, _ := memory.NewWindowRepo(h.store).ListRecent(context.Background(), "crm", 10)
	if len(windows) != 1 || windows[0].Attempts != 3 {
		t.Errorf("expected attempts recorded in window log, got %+v", windows)
	}
}

func TestRunOnce_FailedDispatchPersistsNothing(t *testing.T) {
	tests := []struct {
		name     string
		errs     []error
		attempts int
	}{
		{
			name:     "permanent",
			errs:     []error{fmt.Errorf("%w: 400", connector.ErrPermanent)},
			attempts: 1,
		},
		{
			name:     "retries exhausted",
			errs:     []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")},
			attempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, iterativeConfig())
			h.conn.errs = tt.errs
			ctx := context.Background()

			result, err := h.scheduler.RunOnce(ctx, "crm")
			if err == nil {
				t.Fatal("expected dispatch error")
			}
			if result.Attempts != tt.attempts {
				t.Errorf("expected %d attempts, got %d", tt.attempts, result.Attempts)
			}

			trigger, _ := memory.NewTriggerRepo(h.store).Get(ctx, "crm")
			if trigger.Version != 0 || trigger.LastFullScan != nil {
				t.Errorf("failed dispatch must not advance the trigger: %+v", trigger)
			}
			windows, _ := memory.NewWindowRepo(h.store).ListRecent(ctx, "crm", 10)
			if len(windows) != 0 {
				t.Errorf("failed dispatch must not be logged, got %d windows", len(windows))
			}

			status, _ := h.scheduler.Status("crm")
			if status.ConsecutiveFailures != 1 || status.LastError == "" {
				t.Errorf("failure not recorded: %+v", status)
			}

			// The next tick replans the same window.
			h.conn.errs = nil
			retried, err := h.scheduler.RunOnce(ctx, "crm")
			if err != nil {
				t.Fatalf("retry tick failed: %v", err)
			}
			if !retried.Cursor.To.Equal(result.Cursor.To) || !retried.Cursor.From.Equal(*result.Cursor.From) {
				t.Errorf("expected the same window, got %s then %s", result.Cursor, retried.Cursor)
			}
		})
	}
}

func TestRunOnce_SkipsWhenLocked(t *testing.T) {
	h := newHarness(t, iterativeConfig())
	ctx := context.Background()

	lease, ok, _ := h.locker.Acquire(ctx, "crm", time.Minute)
	if !ok {
		t.Fatal("Acquire failed")
	}

	result, err := h.scheduler.RunOnce(ctx, "crm")
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if !result.Skipped || result.SkipReason != "locked" {
		t.Errorf("expected locked skip, got %+v", result)
	}
	if len(h.conn.calls) != 0 {
		t.Error("locked tick must not dispatch")
	}

	_ = h.locker.Release(ctx, lease)
	if _, ok, _ := h.locker.Acquire(ctx, "crm", time.Minute); !ok {
		t.Error("scheduler must release its own lease")
	}
}

func TestRunOnce_SkipsEmptyWindow(t *testing.T) {
	h := newHarness(t, cursor.Config{
		Kind:              cursor.KindSimple,
		FullScanFrequency: 24 * time.Hour,
	})
	ctx := context.Background()

	if _, err := h.scheduler.RunOnce(ctx, "crm"); err != nil {
		t.Fatalf("first tick failed: %v", err)
	}

	// Same instant: the forward window [t0, t0) is empty.
	result, err := h.scheduler.RunOnce(ctx, "crm")
	if err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if !result.Skipped || result.SkipReason != "empty window" {
		t.Errorf("expected empty window skip, got %+v", result)
	}
	if len(h.conn.calls) != 1 {
		t.Errorf("expected 1 dispatch, got %d", len(h.conn.calls))
	}
}

func TestRunOnce_UnknownSource(t *testing.T) {
	h := newHarness(t, iterativeConfig())

	_, err := h.scheduler.RunOnce(context.Background(), "billing")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestAddSource_Validation(t *testing.T) {
	h := newHarness(t, iterativeConfig())
	strategy, _ := cursor.New(iterativeConfig())

	tests := []struct {
		name string
		src  Source
	}{
		{"duplicate", Source{ID: "crm", Strategy: strategy, Connector: h.conn}},
		{"bad schedule", Source{ID: "billing", Schedule: "every minute", Strategy: strategy, Connector: h.conn}},
		{"missing connector", Source{ID: "erp", Strategy: strategy}},
		{"missing id", Source{Strategy: strategy, Connector: h.conn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.scheduler.AddSource(tt.src); err == nil {
				t.Error("expected error")
			}
		})
	}

	if err := h.scheduler.AddSource(Source{
		ID: "billing", Schedule: "@every 5m", Strategy: strategy, Connector: h.conn,
	}); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	now := t0
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	lease, ok, _ := locker.Acquire(ctx, "crm", time.Minute)
	if !ok {
		t.Fatal("Acquire failed")
	}
	if _, ok, _ := locker.Acquire(ctx, "crm", time.Minute); ok {
		t.Error("lock should be held")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := locker.Acquire(ctx, "crm", time.Minute); !ok {
		t.Error("expired lock should be re-acquirable")
	}
	if err := locker.Release(ctx, lease); !errors.Is(err, domain.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld for stale lease, got %v", err)
	}
}
