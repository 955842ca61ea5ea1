package interfaces

import (
	"context"
	"time"
)

type SyncLockRepository interface {
	// Acquire never blocks: it reports false when a live lock is held by someone else.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Extend pushes the expiry of a lock still held by owner. It reports false once the lock was
	// released or taken over.
	Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release drops the lock only when owner holds it.
	Release(ctx context.Context, key, owner string) error
	IsSet(ctx context.Context, key string) (bool, error)
}
