package cursor

import "time"

// needsFullScan reports whether a (re-)onboarding must happen at now. A now
// earlier than the anchor (clock skew) never triggers one.
func needsFullScan(lastFullScan *time.Time, now time.Time, frequency time.Duration) bool {
	if lastFullScan == nil {
		return true
	}
	return now.Sub(*lastFullScan) > frequency
}

func lookbackFrom(to time.Time, lookback time.Duration) *time.Time {
	if lookback <= 0 {
		return nil
	}
	return ptr(to.Add(-lookback))
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func ptr(t time.Time) *time.Time {
	return &t
}
