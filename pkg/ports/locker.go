package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lease obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker hands out exclusive leases on a key (a blueprint id).
// The session manager uses it so only one editing session per blueprint exists
// across replicas, which is the single-writer assumption the version token relies on.
type DistributedLocker interface {
	// Lock blocks until the lease is acquired or ctx is done.
	// The lease expires after ttl unless released earlier through the returned UnlockFunc.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
