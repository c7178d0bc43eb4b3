package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Well-known tags attached to every planned window. Downstream consumers route
// and label jobs by these values.
const (
	BackwardScanTag = "backward_scan"
	ForwardScanTag  = "forward_scan"
)

// ScanType classifies a planned window as a backward (backfill) leg or a
// forward (incremental) leg.
type ScanType string

const (
	ScanTypeNone     ScanType = ""
	ScanTypeBackward ScanType = "backward"
	ScanTypeForward  ScanType = "forward"
)

// Tag returns the well-known tag string for the scan type.
func (s ScanType) Tag() string {
	switch s {
	case ScanTypeBackward:
		return BackwardScanTag
	case ScanTypeForward:
		return ForwardScanTag
	default:
		return ""
	}
}

// Valid reports whether s is one of the known scan types. The zero value is
// valid and means "no scan yet".
func (s ScanType) Valid() bool {
	switch s {
	case ScanTypeNone, ScanTypeBackward, ScanTypeForward:
		return true
	}
	return false
}

// ParseScanTag maps a tag string back to its scan type.
func ParseScanTag(tag string) (ScanType, error) {
	switch tag {
	case BackwardScanTag:
		return ScanTypeBackward, nil
	case ForwardScanTag:
		return ScanTypeForward, nil
	default:
		return ScanTypeNone, fmt.Errorf("unknown scan tag %q", tag)
	}
}

// CursorMetadata is the input snapshot for one planning call: the persisted
// state of a source plus the current tick.
//
// Absent optional values are nil pointers, ScanTypeNone and a zero count.
type CursorMetadata struct {
	Now              time.Time
	TriggerCreatedAt time.Time
	LastFullScan     *time.Time

	// CurrentCursor is read by the simple strategy.
	CurrentCursor *time.Time

	// The remaining fields are read by the iterative strategy.
	CurrentForwardCursor  *time.Time
	CurrentBackwardCursor *time.Time
	LastScanType          ScanType
	LastScanTypeCount     int
}

// Cursor is the output of one planning call: the window to fetch and the
// state the caller must persist before the next tick.
type Cursor struct {
	From    *time.Time // nil means no lower bound
	To      time.Time
	Partial bool

	ScanType          ScanType
	LastFullScan      time.Time
	ForwardCursor     *time.Time
	BackwardCursor    *time.Time
	LastScanTypeCount int
}

// Tags returns the set of tags for the window. It always holds exactly one tag.
func (c Cursor) Tags() []string {
	return []string{c.ScanType.Tag()}
}

// Unbounded reports whether the window has no lower bound.
func (c Cursor) Unbounded() bool {
	return c.From == nil
}

// Empty reports whether the window covers no time at all. This only happens
// for a forward leg planned at the same instant as the previous one.
func (c Cursor) Empty() bool {
	return c.From != nil && !c.From.Before(c.To)
}

// Span returns the length of the window, or zero for unbounded windows.
func (c Cursor) Span() time.Duration {
	if c.From == nil {
		return 0
	}
	return c.To.Sub(*c.From)
}

func (c Cursor) String() string {
	from := "-inf"
	if c.From != nil {
		from = c.From.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s[%s, %s)", c.ScanType.Tag(), from, c.To.UTC().Format(time.RFC3339))
}

type cursorJSON struct {
	From              *time.Time `json:"from"`
	To                time.Time  `json:"to"`
	Partial           bool       `json:"partial"`
	Tags              []string   `json:"tags"`
	LastFullScan      time.Time  `json:"last_full_scan"`
	ForwardCursor     *time.Time `json:"forward_cursor,omitempty"`
	BackwardCursor    *time.Time `json:"backward_cursor,omitempty"`
	LastScanTypeCount int        `json:"last_scan_type_count,omitempty"`
}

// MarshalJSON encodes the scan type as a one-element tag set.
func (c Cursor) MarshalJSON() ([]byte, error) {
	return json.Marshal(cursorJSON{
		From:              c.From,
		To:                c.To,
		Partial:           c.Partial,
		Tags:              c.Tags(),
		LastFullScan:      c.LastFullScan,
		ForwardCursor:     c.ForwardCursor,
		BackwardCursor:    c.BackwardCursor,
		LastScanTypeCount: c.LastScanTypeCount,
	})
}

// UnmarshalJSON decodes a cursor and rejects tag sets that are not exactly
// one known tag.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	var raw cursorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Tags) != 1 {
		return fmt.Errorf("cursor must carry exactly one tag, got %d", len(raw.Tags))
	}
	scanType, err := ParseScanTag(raw.Tags[0])
	if err != nil {
		return err
	}

	*c = Cursor{
		From:              raw.From,
		To:                raw.To,
		Partial:           raw.Partial,
		ScanType:          scanType,
		LastFullScan:      raw.LastFullScan,
		ForwardCursor:     raw.ForwardCursor,
		BackwardCursor:    raw.BackwardCursor,
		LastScanTypeCount: raw.LastScanTypeCount,
	}
	return nil
}
