package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clinic/internal/config"
	"clinic/internal/domain"
	"clinic/internal/metrics"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Services groups the use cases the HTTP API exposes.
type Services struct {
	Auth         domain.AuthService
	Reservations domain.ReservationService
	Catalog      domain.CatalogService
	Admin        domain.AdminService
}

// HTTPServer exposes the booking API as JSON over HTTP.
type HTTPServer struct {
	cfg      config.APIConfig
	authCfg  config.AuthConfig
	services Services
	throttle domain.RateLimiter
	checks   map[string]HealthChecker
	limiter  *clientLimiter
	server   *http.Server
	logger   zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	authCfg config.AuthConfig,
	services Services,
	throttle domain.RateLimiter,
	checks map[string]HealthChecker,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		authCfg:  authCfg,
		services: services,
		throttle: throttle,
		checks:   checks,
		limiter:  newClientLimiter(cfg.RateLimit),
		logger:   logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	handler := srv.requestID(srv.logging(srv.rateLimit(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			metrics.IncHTTP(pattern)
			h(w, r)
		})
	}

	handle("GET /healthz", s.handleHealth)

	handle("POST /api/auth/register", s.throttled(s.handleRegister))
	handle("POST /api/auth/login", s.throttled(s.handleLogin))
	handle("POST /api/auth/logout", s.authenticated(s.handleLogout))

	handle("GET /api/providers", s.handleProviders)
	handle("GET /api/providers/{id}", s.handleProvider)
	handle("GET /api/providers/{id}/available-slots", s.handleAvailableSlots)
	handle("GET /api/services", s.handleServices)

	handle("POST /api/appointments", s.authenticated(s.handleReserve))
	handle("PUT /api/appointments/{id}", s.authenticated(s.handleSwap))
	handle("GET /api/appointments/my", s.authenticated(s.handleMyAppointments))

	handle("GET /api/admin/appointments", s.adminOnly(s.handleAdminAppointments))
	handle("GET /api/admin/reports/daily", s.adminOnly(s.handleDailyReport))
	handle("POST /api/admin/providers", s.adminOnly(s.handleCreateProvider))
	handle("POST /api/admin/schedules", s.adminOnly(s.handleCreateSchedule))
	handle("POST /api/admin/appointments", s.adminOnly(s.handleCreateAppointment))
	handle("POST /api/admin/services", s.adminOnly(s.handleCreateService))
	handle("DELETE /api/admin/appointments/{id}", s.adminOnly(s.handleDeleteAppointment))
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// throttled ограничивает регистрацию и вход по IP клиента через общее хранилище лимитов.
func (s *HTTPServer) throttled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.throttle == nil || s.authCfg.RegisterRateLimit <= 0 {
			next(w, r)
			return
		}
		key := "auth:" + clientIP(r)
		allowed, err := s.throttle.CheckRateLimit(r.Context(), key, s.authCfg.RegisterRateLimit, s.authCfg.RegisterRateWindow)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("auth throttle check failed")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestIDFromHeader(r)
		w.Header().Set(requestIDHeader, id)

		logger := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

// writeDomainError переводит ошибки сервисов в HTTP-статусы.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSlotContended):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "retry": true})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyReserved),
		errors.Is(err, domain.ErrSlotUnavailable),
		errors.Is(err, domain.ErrProviderInactive),
		errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
