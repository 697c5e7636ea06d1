package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]memoryEntry
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		now:    time.Now,
		leases: make(map[string]memoryEntry),
	}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if entry, held := l.leases[key]; held && now.Before(entry.expires) {
		return nil, ErrLocked
	}

	token := uuid.New().String()
	l.leases[key] = memoryEntry{token: token, expires: now.Add(ttl)}

	return &memoryLease{locker: l, key: key, token: token}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLease) Key() string {
	return l.key
}

func (l *memoryLease) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	entry, held := l.locker.leases[l.key]
	if !held || entry.token != l.token {
		return ErrNotHeld
	}

	delete(l.locker.leases, l.key)

	return nil
}
