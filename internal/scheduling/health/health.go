// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// SourceHealth contains health data for one scheduled source.
type SourceHealth struct {
	SourceID            string       `json:"source_id"`
	Status              SystemStatus `json:"status"`
	Phase               string       `json:"phase"`
	ForwardLagSeconds   float64      `json:"forward_lag_seconds"`
	BackfillProgress    float64      `json:"backfill_progress"`
	LastSuccessAt       *time.Time   `json:"last_success_at,omitempty"`
	LastError           string       `json:"last_error,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Sources      map[string]SourceHealth `json:"sources"`
	Dependencies map[string]string       `json:"dependencies,omitempty"`
	CheckedAt    time.Time               `json:"checked_at"`
}

// Thresholds classify a source as degraded or critical.
type Thresholds struct {
	LagDegraded      time.Duration `yaml:"lag_degraded"`
	LagCritical      time.Duration `yaml:"lag_critical"`
	FailuresCritical int           `yaml:"failures_critical"`
}

// DefaultThresholds returns the thresholds used for zero fields.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LagDegraded:      time.Hour,
		LagCritical:      24 * time.Hour,
		FailuresCritical: 5,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.LagDegraded <= 0 {
		t.LagDegraded = d.LagDegraded
	}
	if t.LagCritical <= 0 {
		t.LagCritical = d.LagCritical
	}
	if t.FailuresCritical <= 0 {
		t.FailuresCritical = d.FailuresCritical
	}
	return t
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
