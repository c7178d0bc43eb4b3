package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
	"github.com/vietddude/ingestor/internal/scheduling/scheduler"
)

// =============================================================================
// Mocks
// =============================================================================

// Stub Cursor Manager
type stubCursorMgr struct {
	triggers map[domain.SourceID]*domain.Trigger
}

func (s *stubCursorMgr) Register(id domain.SourceID, st cursor.Strategy) {}
func (s *stubCursorMgr) Get(ctx context.Context, id domain.SourceID) (*domain.Trigger, error) {
	t, ok := s.triggers[id]
	if !ok {
		return nil, storage.ErrTriggerNotFound
	}
	return t, nil
}
func (s *stubCursorMgr) Ensure(ctx context.Context, id domain.SourceID, now time.Time) (*domain.Trigger, error) {
	return nil, nil
}
func (s *stubCursorMgr) Plan(ctx context.Context, id domain.SourceID, now time.Time) (*cursor.Plan, error) {
	return nil, nil
}
func (s *stubCursorMgr) Commit(
	ctx context.Context, p *cursor.Plan, r *domain.WindowRecord, at time.Time,
) (*domain.Trigger, error) {
	return nil, nil
}
func (s *stubCursorMgr) Reset(ctx context.Context, id domain.SourceID) error { return nil }
func (s *stubCursorMgr) GetMetrics(id domain.SourceID) cursor.Metrics       { return cursor.Metrics{} }
func (s *stubCursorMgr) SetPhaseChangeCallback(fn func(domain.SourceID, cursor.Transition)) {
}

// Stub Status Provider
type stubStatuses struct {
	failures int
}

func (s *stubStatuses) Status(id domain.SourceID) (scheduler.SourceStatus, bool) {
	st := scheduler.SourceStatus{SourceID: id, ConsecutiveFailures: s.failures}
	if s.failures > 0 {
		st.LastError = "connection refused"
	}
	return st, true
}

type stubPinger struct {
	err error
}

func (p stubPinger) Health(ctx context.Context) error { return p.err }

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMonitor(lag time.Duration, failures int) *Monitor {
	anchor := now.Add(-48 * time.Hour)
	forward := now.Add(-lag)
	mgr := &stubCursorMgr{triggers: map[domain.SourceID]*domain.Trigger{
		"crm": {
			SourceID:       "crm",
			LastFullScan:   &anchor,
			ForwardCursor:  &forward,
			BackwardCursor: &anchor,
		},
	}}

	m := NewMonitor(
		[]SourceInfo{{ID: "crm", Lookback: 24 * time.Hour}},
		mgr,
		&stubStatuses{failures: failures},
		Thresholds{},
	)
	m.now = func() time.Time { return now }
	return m
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name     string
		lag      time.Duration
		failures int
		expected SystemStatus
	}{
		{"healthy", 5 * time.Minute, 0, StatusHealthy},
		{"degraded by lag", 2 * time.Hour, 0, StatusDegraded},
		{"degraded by failure", time.Minute, 1, StatusDegraded},
		{"critical by lag", 48 * time.Hour, 0, StatusCritical},
		{"critical by failures", time.Minute, 5, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newMonitor(tt.lag, tt.failures).CheckHealth(context.Background())
			health := report.Sources["crm"]

			if health.Status != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, health.Status)
			}
			if report.SystemStatus != tt.expected {
				t.Errorf("expected system status %s, got %s", tt.expected, report.SystemStatus)
			}
			if health.Phase != string(domain.PhaseSteady) {
				t.Errorf("expected steady phase, got %s", health.Phase)
			}
		})
	}
}

func TestMonitor_UnknownTriggerIsOnboarding(t *testing.T) {
	m := NewMonitor(
		[]SourceInfo{{ID: "billing"}},
		&stubCursorMgr{},
		&stubStatuses{},
		Thresholds{},
	)

	health := m.CheckHealth(context.Background()).Sources["billing"]
	if health.Phase != string(domain.PhaseOnboarding) || health.Status != StatusHealthy {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestMonitor_DependencyFailureIsCritical(t *testing.T) {
	m := newMonitor(time.Minute, 0)
	m.AddDependency("database", stubPinger{})
	m.AddDependency("redis", stubPinger{err: errors.New("dial tcp: refused")})

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if report.Dependencies["database"] != "ok" || report.Dependencies["redis"] == "ok" {
		t.Errorf("unexpected dependencies %v", report.Dependencies)
	}
}

func TestServer_Endpoints(t *testing.T) {
	srv := NewServer(newMonitor(48*time.Hour, 0), 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for critical, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	var report HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid detailed report: %v", err)
	}
	if _, ok := report.Sources["crm"]; !ok {
		t.Errorf("detailed report misses source: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected metrics endpoint, got %d", rec.Code)
	}
}
