package domain

import "time"

// Trigger is the persisted scheduling state of one source. It is created the
// first time the source is seen and replaced wholesale after every dispatched
// window.
type Trigger struct {
	SourceID          SourceID
	Strategy          StrategyKind
	CreatedAt         time.Time
	LastFullScan      *time.Time
	ForwardCursor     *time.Time
	BackwardCursor    *time.Time
	LastScanType      ScanType
	LastScanTypeCount int
	Version           int64 // optimistic lock, bumped on every update
	UpdatedAt         time.Time
}

// NewTrigger returns the initial state of a source first seen at createdAt.
func NewTrigger(sourceID SourceID, kind StrategyKind, createdAt time.Time) *Trigger {
	return &Trigger{
		SourceID:  sourceID,
		Strategy:  kind,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Metadata builds the planning input for the tick at now.
func (t *Trigger) Metadata(now time.Time) CursorMetadata {
	return CursorMetadata{
		Now:                   now,
		TriggerCreatedAt:      t.CreatedAt,
		LastFullScan:          cloneTime(t.LastFullScan),
		CurrentCursor:         cloneTime(t.ForwardCursor),
		CurrentForwardCursor:  cloneTime(t.ForwardCursor),
		CurrentBackwardCursor: cloneTime(t.BackwardCursor),
		LastScanType:          t.LastScanType,
		LastScanTypeCount:     t.LastScanTypeCount,
	}
}

// Apply returns the state to persist once the window c has been fetched.
// The receiver is left untouched.
func (t *Trigger) Apply(c Cursor, at time.Time) *Trigger {
	lastFullScan := c.LastFullScan
	return &Trigger{
		SourceID:          t.SourceID,
		Strategy:          t.Strategy,
		CreatedAt:         t.CreatedAt,
		LastFullScan:      &lastFullScan,
		ForwardCursor:     cloneTime(c.ForwardCursor),
		BackwardCursor:    cloneTime(c.BackwardCursor),
		LastScanType:      c.ScanType,
		LastScanTypeCount: c.LastScanTypeCount,
		Version:           t.Version + 1,
		UpdatedAt:         at,
	}
}

// Phase classifies the trigger's lifecycle position.
func (t *Trigger) Phase() Phase {
	switch {
	case t.LastFullScan == nil:
		return PhaseOnboarding
	case t.BackwardCursor != nil && t.BackwardCursor.Before(*t.LastFullScan):
		return PhaseBackfilling
	default:
		return PhaseSteady
	}
}

// BackfillProgress returns the fraction of the current backfill window that
// has been covered, given the onboarding lookback. Sources without backward
// legs report 1 once an anchor exists.
func (t *Trigger) BackfillProgress(lookback time.Duration) float64 {
	if t.LastFullScan == nil {
		return 0
	}
	if t.BackwardCursor == nil || lookback <= 0 {
		return 1
	}
	start := t.LastFullScan.Add(-lookback)
	done := t.BackwardCursor.Sub(start)
	switch {
	case done <= 0:
		return 0
	case done >= lookback:
		return 1
	}
	return float64(done) / float64(lookback)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
