// Package cursor plans the next fetch window for each scheduled source.
//
// # Purpose
//
// Every tick the scheduler asks a Strategy which time window of source data to
// fetch next. The answer reconciles three needs:
//   - Onboarding: a new source needs a full historical backfill
//   - Forward scans: a steady-state source only needs small incremental windows
//   - Re-onboarding: the backfill is redone every FullScanFrequency to pick up
//     late or revised records
//
// # Strategies
//
// SimpleStrategy alternates between one full (re-)onboarding window and
// forward windows. IterativeStrategy splits the backfill into bounded backward
// legs and interleaves them with forward legs, at most
// SuccessiveBackwardScanCount backward legs in a row.
//
// Strategies are pure: NextCursor only reads its argument and never fails. The
// caller persists the returned cursor's state and feeds it back on the next
// tick (see Manager).
//
// # Quick Start
//
//	strategy, err := cursor.New(cursor.Config{
//	    Kind:               cursor.KindIterative,
//	    FullScanFrequency:  30 * 24 * time.Hour,
//	    OnboardingLookback: 14 * 24 * time.Hour,
//	    BackwardStepSize:   7 * 24 * time.Hour,
//	})
//
//	next := strategy.NextCursor(trigger.Metadata(time.Now()))
//	// fetch [next.From, next.To), then persist trigger.Apply(next, time.Now())
//
// # Package Structure
//
//   - cursor.go    - Strategy interface, Config and factory
//   - fullscan.go  - (re-)onboarding trigger shared by both strategies
//   - simple.go    - SimpleStrategy
//   - iterative.go - IterativeStrategy
//   - state.go     - lifecycle phases of a source
//   - manager.go   - load/plan/commit cycle against a TriggerRepository
//   - metrics.go   - per-source leg history
package cursor

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

// =============================================================================
// Re-exported types from domain package
// =============================================================================

// Kind selects a strategy implementation.
type Kind = domain.StrategyKind

const (
	KindSimple    = domain.StrategySimple
	KindIterative = domain.StrategyIterative
)

// ErrInvalidConfig is returned when a strategy is built from invalid parameters.
var ErrInvalidConfig = errors.New("invalid cursor strategy config")

// Strategy computes the next cursor from the persisted state of a source.
type Strategy interface {
	// Kind returns the strategy kind.
	Kind() Kind

	// NextCursor returns the next window and the state to persist.
	NextCursor(meta domain.CursorMetadata) domain.Cursor
}

// Config holds the parameters of a strategy. It is built once per source.
type Config struct {
	Kind Kind `yaml:"kind"`

	// FullScanFrequency is how long an anchor stays fresh before re-onboarding.
	FullScanFrequency time.Duration `yaml:"full_scan_frequency"`

	// OnboardingLookback bounds how far back a full scan reaches. Zero means
	// unbounded and is only accepted by the simple strategy.
	OnboardingLookback time.Duration `yaml:"onboarding_lookback"`

	// Iterative only.
	BackwardStepSize            time.Duration `yaml:"backward_step_size"`
	SuccessiveBackwardScanCount int           `yaml:"successive_backward_scan_count"` // 0 = 1
}

// =============================================================================
// Constructor functions
// =============================================================================

// New builds the strategy selected by cfg.Kind. An empty kind selects the
// simple strategy.
func New(cfg Config) (Strategy, error) {
	switch cfg.Kind {
	case KindSimple, "":
		return NewSimpleStrategy(cfg)
	case KindIterative:
		return NewIterativeStrategy(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, cfg.Kind)
	}
}

// NewSimpleStrategy validates cfg and returns a SimpleStrategy.
func NewSimpleStrategy(cfg Config) (*SimpleStrategy, error) {
	if cfg.FullScanFrequency <= 0 {
		return nil, fmt.Errorf("%w: full_scan_frequency must be positive", ErrInvalidConfig)
	}
	if cfg.OnboardingLookback < 0 {
		return nil, fmt.Errorf("%w: onboarding_lookback must not be negative", ErrInvalidConfig)
	}
	return &SimpleStrategy{
		fullScanFrequency:  cfg.FullScanFrequency,
		onboardingLookback: cfg.OnboardingLookback,
	}, nil
}

// NewIterativeStrategy validates cfg and returns an IterativeStrategy.
func NewIterativeStrategy(cfg Config) (*IterativeStrategy, error) {
	if cfg.FullScanFrequency <= 0 {
		return nil, fmt.Errorf("%w: full_scan_frequency must be positive", ErrInvalidConfig)
	}
	if cfg.OnboardingLookback <= 0 {
		return nil, fmt.Errorf("%w: onboarding_lookback must be positive", ErrInvalidConfig)
	}
	if cfg.BackwardStepSize <= 0 {
		return nil, fmt.Errorf("%w: backward_step_size must be positive", ErrInvalidConfig)
	}

	burst := cfg.SuccessiveBackwardScanCount
	switch {
	case burst < 0:
		return nil, fmt.Errorf(
			"%w: successive_backward_scan_count must be at least 1",
			ErrInvalidConfig,
		)
	case burst == 0:
		burst = 1
	}

	return &IterativeStrategy{
		fullScanFrequency:  cfg.FullScanFrequency,
		onboardingLookback: cfg.OnboardingLookback,
		backwardStepSize:   cfg.BackwardStepSize,
		burst:              burst,
	}, nil
}

// NewManager creates a new cursor manager over the given repositories.
func NewManager(repo storage.TriggerRepository, committer storage.Committer) *DefaultManager {
	return &DefaultManager{
		repo:       repo,
		committer:  committer,
		strategies: make(map[domain.SourceID]Strategy),
		history:    make(map[domain.SourceID]*MetricsCollector),
	}
}

// NewMetricsCollector creates a new metrics collector with the given window size.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &MetricsCollector{
		windowSize:  windowSize,
		legs:        make([]legRecord, 0, windowSize),
		transitions: make([]Transition, 0, 10),
	}
}
