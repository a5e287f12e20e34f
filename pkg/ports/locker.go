package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken with DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on one key across bot replicas. Two webhook deliveries for
// the same chat user must not both load the old state and race to save theirs.
type DistributedLocker interface {
	// Lock blocks until key is held or ctx is done. The lock expires on its own after ttl.
	// The returned UnlockFunc must be called once the work is saved.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
