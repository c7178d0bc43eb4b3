package cursor

import (
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// SimpleStrategy plans one full window per (re-)onboarding and a forward
// window on every other tick. The backfill is never chunked.
type SimpleStrategy struct {
	fullScanFrequency  time.Duration
	onboardingLookback time.Duration // 0 = unbounded
}

// Kind implements Strategy.
func (s *SimpleStrategy) Kind() Kind { return KindSimple }

// NextCursor implements Strategy.
func (s *SimpleStrategy) NextCursor(meta domain.CursorMetadata) domain.Cursor {
	if needsFullScan(meta.LastFullScan, meta.Now, s.fullScanFrequency) {
		return s.fullScan(meta)
	}
	return s.forwardScan(meta)
}

func (s *SimpleStrategy) fullScan(meta domain.CursorMetadata) domain.Cursor {
	// The first onboarding is anchored to the trigger creation so the window
	// does not depend on scheduler delay.
	to := meta.Now
	if meta.LastFullScan == nil {
		to = minTime(meta.TriggerCreatedAt, meta.Now)
	}

	return domain.Cursor{
		From:          lookbackFrom(to, s.onboardingLookback),
		To:            to,
		Partial:       false,
		ScanType:      domain.ScanTypeBackward,
		LastFullScan:  to,
		ForwardCursor: ptr(to),
	}
}

func (s *SimpleStrategy) forwardScan(meta domain.CursorMetadata) domain.Cursor {
	from := meta.CurrentCursor
	if from == nil {
		from = meta.LastFullScan
	}

	return domain.Cursor{
		From:          ptr(*from),
		To:            meta.Now,
		Partial:       true,
		ScanType:      domain.ScanTypeForward,
		LastFullScan:  *meta.LastFullScan,
		ForwardCursor: ptr(meta.Now),
	}
}
