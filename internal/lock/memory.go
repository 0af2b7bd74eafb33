package lock

import (
	"context"
	"sync"
	"time"

	"clinic/internal/domain"

	"github.com/google/uuid"
)

type memoryEntry struct {
	owner     string
	expiresAt time.Time
}

// MemoryLocker only coordinates goroutines of one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryEntry), now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (*domain.Lease, bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.locks[key]; ok && now.Before(e.expiresAt) {
		return nil, false, nil
	}
	owner := uuid.NewString()
	l.locks[key] = memoryEntry{owner: owner, expiresAt: now.Add(ttl)}
	return &domain.Lease{Key: key, Owner: owner, AcquiredAt: now, TTL: ttl}, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, lease *domain.Lease) error {
	if lease == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.locks[lease.Key]; ok && e.owner == lease.Owner {
		delete(l.locks, lease.Key)
	}
	return nil
}

func (l *MemoryLocker) Health(context.Context) error {
	return nil
}

// Held reports whether key is currently locked.
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	return ok && l.now().Before(e.expiresAt)
}
