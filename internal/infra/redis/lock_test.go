package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vietddude/ingestor/internal/core/domain"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewClient(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return NewLocker(client, "test"), mr
}

func TestLocker_AcquireRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, "crm", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
	if lease.Token == "" || lease.SourceID != "crm" {
		t.Errorf("unexpected lease %+v", lease)
	}
	if got, _ := mr.Get("test:lock:crm"); got != lease.Token {
		t.Errorf("expected key to hold token, got %q", got)
	}

	if _, ok, _ := locker.Acquire(ctx, "crm", time.Minute); ok {
		t.Error("second Acquire must fail while the lock is held")
	}
	if _, ok, _ := locker.Acquire(ctx, "billing", time.Minute); !ok {
		t.Error("locks of different sources must be independent")
	}

	if err := locker.Release(ctx, lease); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if mr.Exists("test:lock:crm") {
		t.Error("lock key should be deleted")
	}
	if err := locker.Release(ctx, lease); !errors.Is(err, domain.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld on double release, got %v", err)
	}
}

func TestLocker_ExpiredLeaseCannotReleaseNewHolder(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	stale, ok, _ := locker.Acquire(ctx, "crm", time.Second)
	if !ok {
		t.Fatal("Acquire failed")
	}
	mr.FastForward(2 * time.Second)

	current, ok, _ := locker.Acquire(ctx, "crm", time.Minute)
	if !ok {
		t.Fatal("expected the expired lock to be re-acquirable")
	}

	if err := locker.Release(ctx, stale); !errors.Is(err, domain.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld, got %v", err)
	}
	if got, _ := mr.Get("test:lock:crm"); got != current.Token {
		t.Error("stale release must not delete the current holder's lock")
	}
}

func TestLocker_Refresh(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	lease, _, _ := locker.Acquire(ctx, "crm", time.Second)
	if err := locker.Refresh(ctx, lease, time.Minute); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if ttl := mr.TTL("test:lock:crm"); ttl != time.Minute {
		t.Errorf("expected TTL of 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if err := locker.Refresh(ctx, lease, time.Minute); !errors.Is(err, domain.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld after expiry, got %v", err)
	}
}
