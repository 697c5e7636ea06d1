// Package lock provides the per-workflow mutation lock taken by the API around every
// change to a workflow.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLocked indicates another holder owns the key.
	ErrLocked = errors.New("resource is locked")
	// ErrNotHeld indicates the lease expired or was taken over before release.
	ErrNotHeld = errors.New("lock is not held")
)

// DefaultTTL bounds how long a crashed holder can block a workflow.
const DefaultTTL = 30 * time.Second

// Locker hands out exclusive, expiring leases. TryAcquire never waits: it fails with
// ErrLocked when the key is taken.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// WorkflowKey is the lock key for mutations of a workflow.
func WorkflowKey(workflowID string) string {
	return "sendsmartly:lock:workflow:" + workflowID
}
