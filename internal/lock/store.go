package lock

import (
	"context"
	"time"

	"clinic/internal/domain"

	"github.com/google/uuid"
)

// LeaseStore is the persistence side of StoreLocker (implemented by database.DB).
type LeaseStore interface {
	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, owner string) (bool, error)
	Health(ctx context.Context) error
}

// StoreLocker keeps leases as rows in the main store. It needs no extra
// infrastructure and still works across several API processes sharing one database file.
type StoreLocker struct {
	store LeaseStore
}

func NewStoreLocker(store LeaseStore) *StoreLocker {
	return &StoreLocker{store: store}
}

func (l *StoreLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*domain.Lease, bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.AcquireLease(ctx, key, owner, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &domain.Lease{Key: key, Owner: owner, AcquiredAt: time.Now(), TTL: ttl}, true, nil
}

func (l *StoreLocker) Release(ctx context.Context, lease *domain.Lease) error {
	if lease == nil {
		return nil
	}
	_, err := l.store.ReleaseLease(ctx, lease.Key, lease.Owner)
	return err
}

func (l *StoreLocker) Health(ctx context.Context) error {
	return l.store.Health(ctx)
}
