package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		ObserveLockHold(15 * time.Millisecond)
	})
}

func TestReservationCounters(t *testing.T) {
	before := testutil.ToFloat64(reservationAttempts.WithLabelValues("reserve", "contended"))
	IncReservation("reserve", "contended")
	IncReservation("reserve", "contended")
	assert.Equal(t, before+2, testutil.ToFloat64(reservationAttempts.WithLabelValues("reserve", "contended")))

	acquired := testutil.ToFloat64(lockAcquire.WithLabelValues("acquired"))
	IncLockAcquire("acquired")
	assert.Equal(t, acquired+1, testutil.ToFloat64(lockAcquire.WithLabelValues("acquired")))
}
