package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/scheduling/scheduler"
)

// StatusProvider exposes the run history of sources.
type StatusProvider interface {
	Status(sourceID domain.SourceID) (scheduler.SourceStatus, bool)
}

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Health(ctx context.Context) error
}

// SourceInfo is the static description of a monitored source.
type SourceInfo struct {
	ID       domain.SourceID
	Lookback time.Duration
}

// Monitor aggregates health status from the cursor state and the scheduler.
type Monitor struct {
	sources      []SourceInfo
	cursorMgr    cursor.Manager
	statuses     StatusProvider
	dependencies map[string]Pinger
	thresholds   Thresholds
	cacheFor     time.Duration
	now          func() time.Time
	lastCheck    time.Time
	lastReport   *HealthReport
	mu           sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(
	sources []SourceInfo,
	cursorMgr cursor.Manager,
	statuses StatusProvider,
	thresholds Thresholds,
) *Monitor {
	return &Monitor{
		sources:      sources,
		cursorMgr:    cursorMgr,
		statuses:     statuses,
		dependencies: make(map[string]Pinger),
		thresholds:   thresholds.withDefaults(),
		cacheFor:     10 * time.Second,
		now:          time.Now,
	}
}

// AddDependency registers a dependency checked on every report.
func (m *Monitor) AddDependency(name string, p Pinger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencies[name] = p
}

// CheckHealth builds a report for all sources. Reports are cached briefly so
// that probes do not hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Sources:      make(map[string]SourceHealth, len(m.sources)),
		CheckedAt:    now,
	}

	for _, src := range m.sources {
		health := m.checkSource(ctx, src, now)
		report.Sources[health.SourceID] = health
		report.SystemStatus = worst(report.SystemStatus, health.Status)
	}

	if len(m.dependencies) > 0 {
		report.Dependencies = make(map[string]string, len(m.dependencies))
		for name, dep := range m.dependencies {
			if err := dep.Health(ctx); err != nil {
				report.Dependencies[name] = err.Error()
				report.SystemStatus = StatusCritical
				continue
			}
			report.Dependencies[name] = "ok"
		}
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}

func (m *Monitor) checkSource(ctx context.Context, src SourceInfo, now time.Time) SourceHealth {
	health := SourceHealth{
		SourceID: string(src.ID),
		Status:   StatusHealthy,
		Phase:    string(domain.PhaseOnboarding),
	}

	if st, ok := m.statuses.Status(src.ID); ok {
		health.LastSuccessAt = st.LastSuccessAt
		health.LastError = st.LastError
		health.ConsecutiveFailures = st.ConsecutiveFailures
	}

	trigger, err := m.cursorMgr.Get(ctx, src.ID)
	if err == nil {
		health.Phase = string(trigger.Phase())
		health.BackfillProgress = trigger.BackfillProgress(src.Lookback)
		if trigger.ForwardCursor != nil {
			health.ForwardLagSeconds = max(now.Sub(*trigger.ForwardCursor).Seconds(), 0)
		}
	}

	lag := time.Duration(health.ForwardLagSeconds * float64(time.Second))
	switch {
	case health.ConsecutiveFailures >= m.thresholds.FailuresCritical || lag > m.thresholds.LagCritical:
		health.Status = StatusCritical
	case health.ConsecutiveFailures > 0 || lag > m.thresholds.LagDegraded:
		health.Status = StatusDegraded
	}
	return health
}
