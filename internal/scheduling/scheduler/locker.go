package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// Locker serialises ticks of one source across workers.
type Locker interface {
	// Acquire takes the lock of a source for ttl. It returns false without an
	// error when the lock is held elsewhere.
	Acquire(ctx context.Context, sourceID domain.SourceID, ttl time.Duration) (domain.Lease, bool, error)

	// Release gives the lock back. It returns domain.ErrLockNotHeld when the
	// lease already lapsed.
	Release(ctx context.Context, lease domain.Lease) error
}

// LocalLocker is an in-process Locker for single-replica deployments.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[domain.SourceID]domain.Lease
	now    func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		leases: make(map[domain.SourceID]domain.Lease),
		now:    time.Now,
	}
}

func (l *LocalLocker) Acquire(
	ctx context.Context,
	sourceID domain.SourceID,
	ttl time.Duration,
) (domain.Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[sourceID]; ok && now.Before(held.ExpiresAt()) {
		return domain.Lease{}, false, nil
	}

	lease := domain.Lease{
		SourceID:   sourceID,
		Token:      uuid.NewString(),
		AcquiredAt: now,
		TTL:        ttl,
	}
	l.leases[sourceID] = lease
	return lease, true, nil
}

func (l *LocalLocker) Release(ctx context.Context, lease domain.Lease) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.leases[lease.SourceID]
	if !ok || held.Token != lease.Token || !l.now().Before(held.ExpiresAt()) {
		return domain.ErrLockNotHeld
	}
	delete(l.leases, lease.SourceID)
	return nil
}

var _ Locker = (*LocalLocker)(nil)
