package storage

import (
	"context"
	"errors"

	"github.com/vietddude/ingestor/internal/core/domain"
)

var (
	// ErrTriggerNotFound is returned when a source has no persisted trigger.
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrTriggerExists is returned by Create when the source already has a trigger.
	ErrTriggerExists = errors.New("trigger already exists")

	// ErrVersionConflict is returned when an update lost an optimistic lock race.
	ErrVersionConflict = errors.New("trigger version conflict")
)

// TriggerRepository handles persisted cursor state, one row per source.
type TriggerRepository interface {
	// Get retrieves the trigger of a source
	Get(ctx context.Context, sourceID domain.SourceID) (*domain.Trigger, error)

	// List retrieves all triggers ordered by source id
	List(ctx context.Context) ([]*domain.Trigger, error)

	// Create inserts a new trigger, failing with ErrTriggerExists if present
	Create(ctx context.Context, trigger *domain.Trigger) error

	// Update replaces the trigger if the stored version equals expectedVersion
	Update(ctx context.Context, trigger *domain.Trigger, expectedVersion int64) error

	// ResetState clears all cursor state, keeping CreatedAt, so the next tick
	// onboards the source again
	ResetState(ctx context.Context, sourceID domain.SourceID) error

	// Delete removes the trigger entirely
	Delete(ctx context.Context, sourceID domain.SourceID) error
}

// WindowRepository keeps an audit log of dispatched windows.
type WindowRepository interface {
	// Record appends a dispatched window
	Record(ctx context.Context, record *domain.WindowRecord) error

	// ListRecent returns the latest windows of a source, newest first
	ListRecent(ctx context.Context, sourceID domain.SourceID, limit int) ([]*domain.WindowRecord, error)

	// DeleteOlderThan prunes windows dispatched before the unix timestamp
	DeleteOlderThan(ctx context.Context, before int64) (int64, error)
}

// Committer persists an advanced trigger together with the window that
// advanced it. Either both writes happen or neither does.
type Committer interface {
	CommitWindow(
		ctx context.Context,
		trigger *domain.Trigger,
		expectedVersion int64,
		record *domain.WindowRecord,
	) error
}
