package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SweepTask removes expired rows of one kind and reports how many were removed.
type SweepTask struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (int64, error)
}

type TokenPurger interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type LeasePurger interface {
	DeleteExpiredLeases(ctx context.Context, now time.Time) (int64, error)
}

type WindowPurger interface {
	Purge() int
}

func TokenSweep(store TokenPurger) SweepTask {
	return SweepTask{Name: "access_tokens", Run: store.DeleteExpiredTokens}
}

// LeaseSweep чистит истёкшие аренды слотов. На корректность не влияет:
// истёкшая аренда и так перезахватывается, это только уборка таблицы.
func LeaseSweep(store LeasePurger) SweepTask {
	return SweepTask{Name: "slot_locks", Run: store.DeleteExpiredLeases}
}

func RateLimitSweep(p WindowPurger) SweepTask {
	return SweepTask{Name: "rate_limits", Run: func(context.Context, time.Time) (int64, error) {
		return int64(p.Purge()), nil
	}}
}

// Sweeper periodically runs maintenance tasks, retrying each with backoff.
type Sweeper struct {
	tasks    []SweepTask
	interval time.Duration
	retry    RetryPolicy
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewSweeper(interval time.Duration, retry RetryPolicy, logger *zerolog.Logger, tasks ...SweepTask) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 30 * time.Second
	}
	return &Sweeper{
		tasks:    tasks,
		interval: interval,
		retry:    retry,
		now:      time.Now,
		logger:   logger,
	}
}

// Start runs a sweep immediately and then every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Int("tasks", len(s.tasks)).Msg("Sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every task once. A failing task does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) map[string]int64 {
	removed := make(map[string]int64, len(s.tasks))
	for _, task := range s.tasks {
		var n int64
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			n, err = task.Run(ctx, s.now())
			return err
		})
		if err != nil {
			s.logger.Error().Err(err).Str("task", task.Name).Msg("sweep failed")
			continue
		}
		removed[task.Name] = n
		if n > 0 {
			s.logger.Info().Str("task", task.Name).Int64("removed", n).Msg("expired rows removed")
		}
	}
	return removed
}
