package cursor

import (
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// legRecord holds the shape of one committed window.
type legRecord struct {
	ScanType    domain.ScanType
	Span        time.Duration
	Unbounded   bool
	CommittedAt time.Time
}

// Metrics holds per-source planning data.
type Metrics struct {
	BackwardLegs       int
	ForwardLegs        int
	AverageForwardSpan time.Duration
	LastFullScanAt     *time.Time
	LastCommitAt       *time.Time
	PhaseHistory       []Transition
}

// MetricsCollector keeps a sliding window of committed legs for a source.
type MetricsCollector struct {
	windowSize     int         // number of legs to track
	legs           []legRecord // ring buffer of leg records
	transitions    []Transition
	lastFullScanAt *time.Time
}

// RecordLeg records a committed window.
func (mc *MetricsCollector) RecordLeg(c domain.Cursor, committedAt time.Time) {
	record := legRecord{
		ScanType:    c.ScanType,
		Span:        c.Span(),
		Unbounded:   c.Unbounded(),
		CommittedAt: committedAt,
	}

	if len(mc.legs) >= mc.windowSize {
		// Shift elements left, drop oldest
		copy(mc.legs, mc.legs[1:])
		mc.legs[len(mc.legs)-1] = record
	} else {
		mc.legs = append(mc.legs, record)
	}

	if !c.Partial {
		at := c.LastFullScan
		mc.lastFullScanAt = &at
	}
}

// RecordTransition records a phase transition.
func (mc *MetricsCollector) RecordTransition(t Transition) {
	// Keep only last 10 transitions
	if len(mc.transitions) >= 10 {
		copy(mc.transitions, mc.transitions[1:])
		mc.transitions[len(mc.transitions)-1] = t
	} else {
		mc.transitions = append(mc.transitions, t)
	}
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{
		LastFullScanAt: mc.lastFullScanAt,
		PhaseHistory:   make([]Transition, len(mc.transitions)),
	}
	copy(m.PhaseHistory, mc.transitions)

	var forwardSpan time.Duration
	for _, leg := range mc.legs {
		switch leg.ScanType {
		case domain.ScanTypeBackward:
			m.BackwardLegs++
		case domain.ScanTypeForward:
			m.ForwardLegs++
			forwardSpan += leg.Span
		}
	}
	if m.ForwardLegs > 0 {
		m.AverageForwardSpan = forwardSpan / time.Duration(m.ForwardLegs)
	}
	if n := len(mc.legs); n > 0 {
		at := mc.legs[n-1].CommittedAt
		m.LastCommitAt = &at
	}

	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.legs = mc.legs[:0]
	mc.transitions = mc.transitions[:0]
	mc.lastFullScanAt = nil
}
