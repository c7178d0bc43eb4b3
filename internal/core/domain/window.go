package domain

import "time"

// WindowRecord is the audit entry written for every dispatched window.
type WindowRecord struct {
	ID           string
	SourceID     SourceID
	ScanType     ScanType
	From         *time.Time
	To           time.Time
	Partial      bool
	Attempts     int
	DispatchedAt time.Time
}

// NewWindowRecord captures a dispatched cursor.
func NewWindowRecord(id string, sourceID SourceID, c Cursor, attempts int, at time.Time) *WindowRecord {
	return &WindowRecord{
		ID:           id,
		SourceID:     sourceID,
		ScanType:     c.ScanType,
		From:         cloneTime(c.From),
		To:           c.To,
		Partial:      c.Partial,
		Attempts:     attempts,
		DispatchedAt: at,
	}
}
