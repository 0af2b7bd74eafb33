package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clinic"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_attempts_total",
			Help:      "Reserve and swap attempts by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	lockAcquire = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_lock_acquire_total",
			Help:      "Slot lock acquisition attempts by result (acquired, contended, error).",
		},
		[]string{"result"},
	)

	lockHold = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_lock_hold_seconds",
			Help:      "Time a slot lock was held.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationAttempts, lockAcquire, lockHold)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncReservation records a reserve/swap outcome ("ok", "already_reserved", "contended", ...).
func IncReservation(operation, outcome string) {
	reservationAttempts.WithLabelValues(operation, outcome).Inc()
}

func IncLockAcquire(result string) {
	lockAcquire.WithLabelValues(result).Inc()
}

func ObserveLockHold(d time.Duration) {
	lockHold.Observe(d.Seconds())
}
