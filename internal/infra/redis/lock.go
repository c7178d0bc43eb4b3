package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/ingestor/internal/core/domain"
)

const defaultKeyPrefix = "ingestor"

// Only the holder that set the token may delete or extend the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker hands out per-source leases so that only one worker plans and
// dispatches a source at a time.
type Locker struct {
	rdb    *redis.Client
	prefix string
}

// NewLocker creates a Locker on top of client.
func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Locker{rdb: client.rdb, prefix: keyPrefix}
}

func (l *Locker) lockKey(sourceID domain.SourceID) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, sourceID)
}

// Acquire attempts to take the lock of a source. It returns false without an
// error when another holder has it.
func (l *Locker) Acquire(
	ctx context.Context,
	sourceID domain.SourceID,
	ttl time.Duration,
) (domain.Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.lockKey(sourceID), token, ttl).Result()
	if err != nil {
		return domain.Lease{}, false, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return domain.Lease{}, false, nil
	}
	return domain.Lease{
		SourceID:   sourceID,
		Token:      token,
		AcquiredAt: time.Now(),
		TTL:        ttl,
	}, true, nil
}

// Release deletes the lock if lease still holds it.
func (l *Locker) Release(ctx context.Context, lease domain.Lease) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{l.lockKey(lease.SourceID)}, lease.Token).Int64()
	if err != nil {
		return fmt.Errorf("release failed: %w", err)
	}
	if n == 0 {
		return domain.ErrLockNotHeld
	}
	return nil
}

// Refresh extends the TTL of a held lock.
func (l *Locker) Refresh(ctx context.Context, lease domain.Lease, ttl time.Duration) error {
	n, err := refreshScript.Run(
		ctx, l.rdb,
		[]string{l.lockKey(lease.SourceID)},
		lease.Token, ttl.Milliseconds(),
	).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if n == 0 {
		return domain.ErrLockNotHeld
	}
	return nil
}
