package domain

import (
	"errors"
	"time"
)

// ErrLockNotHeld is returned when a lease is released or refreshed after it
// expired or was taken over by another holder.
var ErrLockNotHeld = errors.New("lock not held")

// Lease is a held per-source lock. Token identifies the holder.
type Lease struct {
	SourceID   SourceID
	Token      string
	AcquiredAt time.Time
	TTL        time.Duration
}

// ExpiresAt returns the instant the lease lapses unless refreshed.
func (l Lease) ExpiresAt() time.Time {
	return l.AcquiredAt.Add(l.TTL)
}
