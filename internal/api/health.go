package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthChecker is implemented by the store and the lock backends.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthFunc adapts a plain function, e.g. a Redis ping, to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// runChecks опрашивает все компоненты; healthy=false, если хотя бы один недоступен.
func runChecks(ctx context.Context, checks map[string]HealthChecker) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	results := make(map[string]string, len(checks))
	healthy := true
	for name, check := range checks {
		if err := check.Health(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

func checkNames(checks map[string]HealthChecker) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, healthy := runChecks(r.Context(), s.checks)
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": results})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": results})
}
