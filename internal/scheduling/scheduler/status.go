package scheduler

import (
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// SourceStatus is the in-memory run history of a source since startup.
type SourceStatus struct {
	SourceID            domain.SourceID `json:"source_id"`
	LastRunAt           *time.Time      `json:"last_run_at,omitempty"`
	LastSuccessAt       *time.Time      `json:"last_success_at,omitempty"`
	LastWindow          *domain.Cursor  `json:"last_window,omitempty"`
	LastError           string          `json:"last_error,omitempty"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
}

// Status returns a copy of the run history of a source.
func (s *Scheduler) Status(sourceID domain.SourceID) (SourceStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statuses[sourceID]
	if !ok {
		return SourceStatus{}, false
	}
	return *st, true
}

func (s *Scheduler) recordSuccess(sourceID domain.SourceID, c domain.Cursor, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.statuses[sourceID]
	st.LastRunAt = &at
	st.LastSuccessAt = &at
	st.LastWindow = &c
	st.LastError = ""
	st.ConsecutiveFailures = 0
}

func (s *Scheduler) recordFailure(sourceID domain.SourceID, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.statuses[sourceID]
	st.LastRunAt = &at
	st.LastError = err.Error()
	st.ConsecutiveFailures++
}
