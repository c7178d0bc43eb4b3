package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

// ErrSourceNotRegistered is returned when planning a source with no strategy.
var ErrSourceNotRegistered = errors.New("source has no registered strategy")

// Plan is a computed but not yet committed window.
type Plan struct {
	Trigger  *domain.Trigger
	Metadata domain.CursorMetadata
	Cursor   domain.Cursor
}

// Manager runs the load, plan and commit cycle of each source.
type Manager interface {
	// Register binds a strategy to a source.
	Register(sourceID domain.SourceID, strategy Strategy)

	// Get retrieves the persisted trigger of a source.
	Get(ctx context.Context, sourceID domain.SourceID) (*domain.Trigger, error)

	// Ensure loads the trigger of a source, creating it on first sight.
	Ensure(ctx context.Context, sourceID domain.SourceID, now time.Time) (*domain.Trigger, error)

	// Plan computes the next window without persisting anything.
	Plan(ctx context.Context, sourceID domain.SourceID, now time.Time) (*Plan, error)

	// Commit persists the state of a fetched window (optimistic, versioned).
	Commit(ctx context.Context, plan *Plan, record *domain.WindowRecord, at time.Time) (*domain.Trigger, error)

	// Reset clears the persisted cursors so the next tick onboards from scratch.
	Reset(ctx context.Context, sourceID domain.SourceID) error

	// GetMetrics returns planning metrics for a source.
	GetMetrics(sourceID domain.SourceID) Metrics

	// SetPhaseChangeCallback registers callback for phase changes.
	SetPhaseChangeCallback(fn func(sourceID domain.SourceID, t Transition))
}

// DefaultManager implements Manager on top of a TriggerRepository.
type DefaultManager struct {
	repo          storage.TriggerRepository
	committer     storage.Committer
	mu            sync.RWMutex
	strategies    map[domain.SourceID]Strategy
	history       map[domain.SourceID]*MetricsCollector
	phaseCallback func(domain.SourceID, Transition)
}

// Register binds a strategy to a source.
func (m *DefaultManager) Register(sourceID domain.SourceID, strategy Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.strategies[sourceID] = strategy
	if _, ok := m.history[sourceID]; !ok {
		m.history[sourceID] = NewMetricsCollector(100)
	}
}

// Get retrieves the persisted trigger of a source.
func (m *DefaultManager) Get(ctx context.Context, sourceID domain.SourceID) (*domain.Trigger, error) {
	return m.repo.Get(ctx, sourceID)
}

// Ensure loads the trigger of a source, creating it on first sight.
func (m *DefaultManager) Ensure(
	ctx context.Context,
	sourceID domain.SourceID,
	now time.Time,
) (*domain.Trigger, error) {
	strategy, err := m.strategy(sourceID)
	if err != nil {
		return nil, err
	}

	trigger, err := m.repo.Get(ctx, sourceID)
	if err == nil {
		return trigger, nil
	}
	if !errors.Is(err, storage.ErrTriggerNotFound) {
		return nil, fmt.Errorf("failed to get trigger: %w", err)
	}

	trigger = domain.NewTrigger(sourceID, strategy.Kind(), now)
	err = m.repo.Create(ctx, trigger)
	switch {
	case err == nil:
		return trigger, nil
	case errors.Is(err, storage.ErrTriggerExists):
		// Lost a creation race; the winner's row is authoritative.
		return m.repo.Get(ctx, sourceID)
	default:
		return nil, fmt.Errorf("failed to create trigger: %w", err)
	}
}

// Plan computes the next window without persisting anything.
func (m *DefaultManager) Plan(ctx context.Context, sourceID domain.SourceID, now time.Time) (*Plan, error) {
	strategy, err := m.strategy(sourceID)
	if err != nil {
		return nil, err
	}

	trigger, err := m.Ensure(ctx, sourceID, now)
	if err != nil {
		return nil, err
	}
	trigger.Strategy = strategy.Kind()

	meta := trigger.Metadata(now)
	return &Plan{
		Trigger:  trigger,
		Metadata: meta,
		Cursor:   strategy.NextCursor(meta),
	}, nil
}

// Commit persists the state of a fetched window.
func (m *DefaultManager) Commit(
	ctx context.Context,
	plan *Plan,
	record *domain.WindowRecord,
	at time.Time,
) (*domain.Trigger, error) {
	next := plan.Trigger.Apply(plan.Cursor, at)

	if err := m.committer.CommitWindow(ctx, next, plan.Trigger.Version, record); err != nil {
		return nil, fmt.Errorf("failed to commit window: %w", err)
	}

	from, to := plan.Trigger.Phase(), next.Phase()

	m.mu.Lock()
	collector, ok := m.history[next.SourceID]
	if ok {
		collector.RecordLeg(plan.Cursor, at)
	}
	var transition *Transition
	if from != to || !plan.Cursor.Partial {
		t := NewTransition(from, to, transitionReason(from, to, plan.Cursor), at)
		transition = &t
		if ok {
			collector.RecordTransition(t)
		}
	}
	callback := m.phaseCallback
	m.mu.Unlock()

	if transition != nil && callback != nil {
		callback(next.SourceID, *transition)
	}

	return next, nil
}

// Reset clears the persisted cursors so the next tick onboards from scratch.
func (m *DefaultManager) Reset(ctx context.Context, sourceID domain.SourceID) error {
	if err := m.repo.ResetState(ctx, sourceID); err != nil {
		return fmt.Errorf("failed to reset trigger: %w", err)
	}

	m.mu.Lock()
	if collector, ok := m.history[sourceID]; ok {
		collector.Reset()
	}
	m.mu.Unlock()

	return nil
}

// GetMetrics returns planning metrics for a source.
func (m *DefaultManager) GetMetrics(sourceID domain.SourceID) Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if collector, ok := m.history[sourceID]; ok {
		return collector.GetMetrics()
	}
	return Metrics{}
}

// SetPhaseChangeCallback registers a callback for phase changes.
func (m *DefaultManager) SetPhaseChangeCallback(fn func(sourceID domain.SourceID, t Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phaseCallback = fn
}

func (m *DefaultManager) strategy(sourceID domain.SourceID) (Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	strategy, ok := m.strategies[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotRegistered, sourceID)
	}
	return strategy, nil
}

// Compile-time interface compliance check.
var _ Manager = (*DefaultManager)(nil)
