package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"clinic/internal/config"
	"clinic/internal/database"
	"clinic/internal/lock"
	"clinic/internal/models"
	"clinic/internal/repository"
	"clinic/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

type apiEnv struct {
	ts     *httptest.Server
	db     *database.DB
	locker *lock.MemoryLocker
	auth   *service.AuthService
}

func newAPIEnv(t *testing.T, mutate func(api *config.APIConfig, auth *config.AuthConfig)) *apiEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	apiCfg := config.APIConfig{HTTP: config.APIHTTPConfig{Enabled: true}}
	authCfg := config.AuthConfig{TokenTTL: 20 * time.Minute}
	if mutate != nil {
		mutate(&apiCfg, &authCfg)
	}

	locker := lock.NewMemoryLocker()
	auth := service.NewAuthService(db, db, nil, authCfg.TokenTTL, bcrypt.MinCost, &logger)
	services := Services{
		Auth:         auth,
		Reservations: service.NewReservationService(db, db, locker, nil, nil, service.ReservationOptions{}, &logger),
		Catalog:      service.NewCatalogService(db, db, db),
		Admin:        service.NewAdminService(db, db, db, db, locker, nil, time.Second, &logger),
	}
	checks := map[string]HealthChecker{"store": db, "lock": locker}

	srv := NewHTTPServer(apiCfg, authCfg, services, repository.NewMemoryRateLimiter(), checks, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &apiEnv{ts: ts, db: db, locker: locker, auth: auth}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (e *apiEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Bearer", body["token_type"])
	return body["token"].(string)
}

func (e *apiEnv) register(t *testing.T, name, email string) (int64, string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password-123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := int64(body["user"].(map[string]any)["id"].(float64))
	return id, e.login(t, email, "password-123")
}

func (e *apiEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, err := e.auth.CreateUser(context.Background(), "Admin", "admin@clinic.test", "admin-pass", models.RoleAdmin)
	require.NoError(t, err)
	return e.login(t, "admin@clinic.test", "admin-pass")
}

// seedCatalog creates a provider, a service and two open slots through the admin API.
func (e *apiEnv) seedCatalog(t *testing.T, admin string) (providerID int64, slots []int64) {
	t.Helper()
	doctorID, _ := e.register(t, "Dr. Rahimi", "rahimi@clinic.test")

	resp, body := e.do(t, http.MethodPost, "/api/admin/providers", admin, map[string]any{"user_id": doctorID, "speciality": "cardiology"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	providerID = int64(body["provider"].(map[string]any)["id"].(float64))

	resp, body = e.do(t, http.MethodPost, "/api/admin/services", admin, map[string]any{"name": "Consultation", "duration_minutes": 20, "price": 500000})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	serviceID := int64(body["service"].(map[string]any)["id"].(float64))

	for _, start := range []string{"11:00", "09:00"} {
		resp, body = e.do(t, http.MethodPost, "/api/admin/appointments", admin, map[string]any{
			"provider_id": providerID, "service_id": serviceID,
			"appointment_date": "1404-10-13", "start_time": start, "end_time": start[:3] + "20",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
		slots = append(slots, int64(body["appointment"].(map[string]any)["id"].(float64)))
	}
	return providerID, slots
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"store": "ok", "lock": "ok"}, body["checks"])

	require.NoError(t, env.db.Close())
	resp, body = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unavailable", body["status"])
}

func TestAuthFlow(t *testing.T) {
	env := newAPIEnv(t, nil)

	_, token := env.register(t, "Sara", "sara@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Sara", "email": "sara@example.com", "password": "password-123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Bad", "email": "nope", "password": "password-123",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "sara@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/appointments/my", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["appointments"])

	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/appointments/my", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReserveAndSwapFlow(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin := env.adminToken(t)
	providerID, slots := env.seedCatalog(t, admin)
	first, second := slots[1], slots[0] // 09:00, 11:00

	_, sara := env.register(t, "Sara", "sara@example.com")
	_, omid := env.register(t, "Omid", "omid@example.com")

	resp, body := env.do(t, http.MethodPost, "/api/appointments", sara, map[string]int64{"appointment_id": first})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	appt := body["appointment"].(map[string]any)
	assert.Equal(t, models.StatusReserved, appt["status"])

	resp, body = env.do(t, http.MethodPost, "/api/appointments", omid, map[string]int64{"appointment_id": first})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Nil(t, body["retry"])

	resp, body = env.do(t, http.MethodPut, fmt.Sprintf("/api/appointments/%d", first), sara, map[string]int64{"appointment_id": second})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, float64(second), body["appointment"].(map[string]any)["id"])

	// Omid cannot move Sara's reservation
	resp, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/appointments/%d", second), omid, map[string]int64{"appointment_id": first})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/appointments/my", sara, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := body["appointments"].([]any)
	require.Len(t, mine, 1)
	assert.Equal(t, float64(second), mine[0].(map[string]any)["id"])

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/providers/%d/available-slots?date=1404-10-13", providerID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	open := body["appointments"].([]any)
	require.Len(t, open, 1)
	assert.Equal(t, float64(first), open[0].(map[string]any)["id"])

	resp, body = env.do(t, http.MethodGet, "/api/admin/reports/daily", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := body["report"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "09:00", rows[0].(map[string]any)["start_time"])
	assert.Equal(t, "Sara", rows[1].(map[string]any)["customer"])
}

func TestDailyReportXLSX(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin := env.adminToken(t)
	env.seedCatalog(t, admin)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/admin/reports/daily?format=xlsx", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "daily_report_")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Appointments")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	resp2, _ := env.do(t, http.MethodGet, "/api/admin/reports/daily?format=csv", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestReserveContended(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin := env.adminToken(t)
	_, slots := env.seedCatalog(t, admin)
	_, sara := env.register(t, "Sara", "sara@example.com")

	appt, err := env.db.GetAppointment(context.Background(), slots[0])
	require.NoError(t, err)
	held, ok, err := env.locker.Acquire(context.Background(), appt.LockKey(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	resp, body := env.do(t, http.MethodPost, "/api/appointments", sara, map[string]int64{"appointment_id": slots[0]})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, true, body["retry"])
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	require.NoError(t, env.locker.Release(context.Background(), held))
	resp, _ = env.do(t, http.MethodPost, "/api/appointments", sara, map[string]int64{"appointment_id": slots[0]})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminAccess(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, sara := env.register(t, "Sara", "sara@example.com")

	resp, _ := env.do(t, http.MethodGet, "/api/admin/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/admin/appointments", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/admin/appointments", sara, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := env.adminToken(t)
	resp, body := env.do(t, http.MethodGet, "/api/admin/appointments", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["appointments"])
}

func TestBadInput(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin := env.adminToken(t)
	providerID, slots := env.seedCatalog(t, admin)
	_, sara := env.register(t, "Sara", "sara@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/appointments", sara, "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/appointments", sara, `{"slot": 1}`, http.StatusBadRequest},
		{"missing appointment id", http.MethodPost, "/api/appointments", sara, map[string]int{}, http.StatusUnprocessableEntity},
		{"unknown appointment", http.MethodPost, "/api/appointments", sara, map[string]int{"appointment_id": 999}, http.StatusNotFound},
		{"bad path id", http.MethodPut, "/api/appointments/abc", sara, map[string]int64{"appointment_id": slots[0]}, http.StatusBadRequest},
		{"slot bad date", http.MethodPost, "/api/admin/appointments", admin, map[string]any{
			"provider_id": providerID, "service_id": 1, "appointment_date": "13/10/1404", "start_time": "09:00", "end_time": "09:20",
		}, http.StatusUnprocessableEntity},
		{"duplicate slot", http.MethodPost, "/api/admin/appointments", admin, map[string]any{
			"provider_id": providerID, "service_id": 1, "appointment_date": "1404-10-13", "start_time": "09:00", "end_time": "09:20",
		}, http.StatusConflict},
		{"delete missing", http.MethodDelete, "/api/admin/appointments/999", admin, nil, http.StatusNotFound},
		{"slots without date", http.MethodGet, fmt.Sprintf("/api/providers/%d/available-slots", providerID), "", nil, http.StatusBadRequest},
		{"unknown provider", http.MethodGet, "/api/providers/999", "", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, body)
		})
	}

	resp, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/appointments/%d", slots[0]), admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCatalogEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/providers", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/services", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["services"])

	admin := env.adminToken(t)
	providerID, _ := env.seedCatalog(t, admin)

	resp, body = env.do(t, http.MethodGet, "/api/providers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["providers"], 1)

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/providers/%d", providerID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dr. Rahimi", body["provider"].(map[string]any)["name"])
}

func TestAuthThrottle(t *testing.T) {
	env := newAPIEnv(t, func(_ *config.APIConfig, auth *config.AuthConfig) {
		auth.RegisterRateLimit = 2
		auth.RegisterRateWindow = time.Minute
	})

	creds := map[string]string{"email": "x@example.com", "password": "whatever1"}
	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := env.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// публичные эндпоинты не затронуты
	resp, _ = env.do(t, http.MethodGet, "/api/services", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClientRateLimit(t *testing.T) {
	env := newAPIEnv(t, func(api *config.APIConfig, _ *config.AuthConfig) {
		api.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodGet, "/api/services", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := env.do(t, http.MethodGet, "/api/services", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	env := newAPIEnv(t, nil)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/services", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))

	resp, _ = env.do(t, http.MethodGet, "/api/services", "", nil)
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
}

func TestWriteDomainError_Internal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writeDomainError(rec, req, errors.New("database is locked"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
