package cursor

import (
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// Step is one planned window of a dry run.
type Step struct {
	At     time.Time     `json:"at"`
	Phase  domain.Phase  `json:"phase"`
	Cursor domain.Cursor `json:"cursor"`
}

// Simulate plans steps windows starting from trigger at start, one every
// interval, assuming every window is fetched successfully. Nothing is
// persisted and trigger is left untouched.
func Simulate(
	strategy Strategy,
	trigger *domain.Trigger,
	start time.Time,
	steps int,
	interval time.Duration,
) []Step {
	if steps <= 0 {
		return nil
	}
	out := make([]Step, 0, steps)
	current := trigger

	for i := 0; i < steps; i++ {
		at := start.Add(time.Duration(i) * interval)
		c := strategy.NextCursor(current.Metadata(at))
		out = append(out, Step{At: at, Phase: current.Phase(), Cursor: c})
		current = current.Apply(c, at)
	}
	return out
}
