package lock

import (
	"context"
	"time"

	"clinic/internal/domain"
	"clinic/internal/metrics"
	"clinic/internal/worker"

	"github.com/rs/zerolog"
)

const releaseTimeout = 2 * time.Second

// Backend is a Locker that can also report its health.
type Backend interface {
	domain.Locker
	Health(ctx context.Context) error
}

// Coordinator wraps a lock backend with an optional bounded wait and metrics.
// With wait == 0 a held key is reported as not acquired right away.
type Coordinator struct {
	backend Backend
	wait    time.Duration
	backoff worker.RetryPolicy
	logger  *zerolog.Logger
}

func NewCoordinator(backend Backend, wait time.Duration, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{
		backend: backend,
		wait:    wait,
		backoff: worker.RetryPolicy{
			InitialDelay:  10 * time.Millisecond,
			MaxDelay:      200 * time.Millisecond,
			BackoffFactor: 2,
		},
		logger: logger,
	}
}

func (c *Coordinator) Acquire(ctx context.Context, key string, ttl time.Duration) (*domain.Lease, bool, error) {
	deadline := time.Now().Add(c.wait)

	for attempt := 1; ; attempt++ {
		lease, ok, err := c.backend.Acquire(ctx, key, ttl)
		if err != nil {
			metrics.IncLockAcquire("error")
			return nil, false, err
		}
		if ok {
			metrics.IncLockAcquire("acquired")
			return lease, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			metrics.IncLockAcquire("contended")
			c.logger.Debug().Str("key", key).Int("attempts", attempt).Msg("slot lock is held")
			return nil, false, nil
		}
		if err := c.backoff.Wait(ctx, attempt, remaining); err != nil {
			metrics.IncLockAcquire("contended")
			return nil, false, nil
		}
	}
}

// Release frees the lease even if ctx is already cancelled. Nil leases are ignored.
func (c *Coordinator) Release(ctx context.Context, lease *domain.Lease) error {
	if lease == nil {
		return nil
	}
	metrics.ObserveLockHold(time.Since(lease.AcquiredAt))

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := c.backend.Release(rctx, lease); err != nil {
		// TTL всё равно освободит ключ
		c.logger.Warn().Err(err).Str("key", lease.Key).Msg("failed to release slot lock")
		return err
	}
	return nil
}

func (c *Coordinator) Health(ctx context.Context) error {
	return c.backend.Health(ctx)
}
