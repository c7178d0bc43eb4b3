package cursor

import (
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// Phase is an alias for domain.Phase for internal use.
type Phase = domain.Phase

const (
	PhaseOnboarding  = domain.PhaseOnboarding
	PhaseBackfilling = domain.PhaseBackfilling
	PhaseSteady      = domain.PhaseSteady
)

// Transition represents a phase change of a source after a commit.
type Transition struct {
	From      Phase
	To        Phase
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to Phase, reason string, at time.Time) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: at,
	}
}

// transitionReason names what moved a source between phases.
func transitionReason(from, to Phase, c domain.Cursor) string {
	switch {
	case !c.Partial:
		if from == PhaseOnboarding {
			return "onboarding"
		}
		return "re-onboarding"
	case to == PhaseSteady && from == PhaseBackfilling:
		return "backfill reached anchor"
	default:
		return c.ScanType.Tag()
	}
}

// PhaseDescription returns a human-readable description of a phase.
func PhaseDescription(p Phase) string {
	switch p {
	case PhaseOnboarding:
		return "Onboarding - no full scan yet"
	case PhaseBackfilling:
		return "Backfilling - backward legs still trail the anchor"
	case PhaseSteady:
		return "Steady - forward scans only until the next re-onboarding"
	default:
		return "Unknown phase"
	}
}
