package driven

import (
	"context"
	"time"
)

// DistributedLock provides named, expiring locks shared across API instances.
// Annotation writes hold the session's lock so that concurrent readers do not
// refill the session cache with a snapshot taken mid-write.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if the lock was acquired, false if already held by another holder.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// IsHeld reports whether anyone currently holds the named lock
	IsHeld(ctx context.Context, name string) (bool, error)

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
