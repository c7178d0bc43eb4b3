package domain

// SourceID identifies a configured upstream source.
type SourceID string

// StrategyKind selects the cursor strategy used to plan a source's windows.
type StrategyKind string

const (
	StrategySimple    StrategyKind = "simple"
	StrategyIterative StrategyKind = "iterative"
)

// Phase describes where a source is in its ingestion lifecycle.
type Phase string

const (
	PhaseOnboarding  Phase = "onboarding"  // no full scan has happened yet
	PhaseBackfilling Phase = "backfilling" // backward legs still trail the anchor
	PhaseSteady      Phase = "steady"      // forward-only polling
)
