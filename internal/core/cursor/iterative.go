package cursor

import (
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// IterativeStrategy splits every (re-)onboarding backfill into backward legs
// of at most backwardStepSize, walking from the oldest boundary up to the
// anchor. At most burst backward legs run in a row before one forward leg is
// forced in, so forward polling never stalls for more than one tick.
type IterativeStrategy struct {
	fullScanFrequency  time.Duration
	onboardingLookback time.Duration
	backwardStepSize   time.Duration
	burst              int
}

// Kind implements Strategy.
func (s *IterativeStrategy) Kind() Kind { return KindIterative }

// NextCursor implements Strategy.
func (s *IterativeStrategy) NextCursor(meta domain.CursorMetadata) domain.Cursor {
	if needsFullScan(meta.LastFullScan, meta.Now, s.fullScanFrequency) {
		return s.onboard(meta)
	}

	anchor := *meta.LastFullScan
	backwardComplete := meta.CurrentBackwardCursor != nil &&
		!meta.CurrentBackwardCursor.Before(anchor)

	switch {
	case backwardComplete:
		return s.forwardLeg(meta)
	case meta.LastScanType == domain.ScanTypeBackward && meta.LastScanTypeCount < s.burst:
		return s.backwardLeg(meta, meta.LastScanTypeCount+1)
	case meta.LastScanType == domain.ScanTypeBackward:
		return s.forwardLeg(meta)
	default:
		// After a forward leg, or with no leg history at all, a fresh burst
		// starts at one.
		return s.backwardLeg(meta, 1)
	}
}

func (s *IterativeStrategy) onboard(meta domain.CursorMetadata) domain.Cursor {
	anchor := meta.Now
	from := anchor.Add(-s.onboardingLookback)
	to := minTime(from.Add(s.backwardStepSize), anchor)

	// Forward progress survives re-onboarding.
	forward := anchor
	if meta.CurrentForwardCursor != nil {
		forward = *meta.CurrentForwardCursor
	}

	return domain.Cursor{
		From:              ptr(from),
		To:                to,
		Partial:           false,
		ScanType:          domain.ScanTypeBackward,
		LastFullScan:      anchor,
		ForwardCursor:     ptr(forward),
		BackwardCursor:    ptr(to),
		LastScanTypeCount: 1,
	}
}

func (s *IterativeStrategy) backwardLeg(meta domain.CursorMetadata, count int) domain.Cursor {
	anchor := *meta.LastFullScan

	from := anchor.Add(-s.onboardingLookback)
	if meta.CurrentBackwardCursor != nil {
		from = *meta.CurrentBackwardCursor
	}
	to := minTime(from.Add(s.backwardStepSize), anchor)

	return domain.Cursor{
		From:              ptr(from),
		To:                to,
		Partial:           true,
		ScanType:          domain.ScanTypeBackward,
		LastFullScan:      anchor,
		ForwardCursor:     s.forwardCursor(meta),
		BackwardCursor:    ptr(to),
		LastScanTypeCount: count,
	}
}

func (s *IterativeStrategy) forwardLeg(meta domain.CursorMetadata) domain.Cursor {
	count := 1
	if meta.LastScanType == domain.ScanTypeForward {
		count = meta.LastScanTypeCount + 1
	}

	return domain.Cursor{
		From:              s.forwardCursor(meta),
		To:                meta.Now,
		Partial:           true,
		ScanType:          domain.ScanTypeForward,
		LastFullScan:      *meta.LastFullScan,
		ForwardCursor:     ptr(meta.Now),
		BackwardCursor:    copyTime(meta.CurrentBackwardCursor),
		LastScanTypeCount: count,
	}
}

// forwardCursor is the persisted forward position, or the anchor for state
// that never recorded one.
func (s *IterativeStrategy) forwardCursor(meta domain.CursorMetadata) *time.Time {
	if meta.CurrentForwardCursor != nil {
		return ptr(*meta.CurrentForwardCursor)
	}
	return ptr(*meta.LastFullScan)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return ptr(*t)
}
