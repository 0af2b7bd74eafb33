package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinic/internal/models"
	"clinic/internal/report"

	"github.com/rs/zerolog"
)

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// --- auth ---

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	user, err := s.services.Auth.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	session, err := s.services.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      session.Token,
		"token_type": "Bearer",
		"expires_at": session.ExpiresAt,
		"user":       session.User,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Auth.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// --- catalog ---

func (s *HTTPServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.services.Catalog.GetProviders(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (s *HTTPServer) handleProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	provider, err := s.services.Catalog.GetProvider(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": provider})
}

func (s *HTTPServer) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	slots, err := s.services.Catalog.GetAvailableSlots(r.Context(), id, date, r.URL.Query().Get("day_of_week"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.services.Catalog.GetActiveServices(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// --- customer ---

type appointmentRequest struct {
	AppointmentID int64 `json:"appointment_id"`
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var body appointmentRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AppointmentID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "appointment_id is required")
		return
	}

	appt, err := s.services.Reservations.Reserve(r.Context(), body.AppointmentID, userFromContext(r.Context()).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "appointment reserved", "appointment": appt})
}

func (s *HTTPServer) handleSwap(w http.ResponseWriter, r *http.Request) {
	oldID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body appointmentRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AppointmentID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "appointment_id is required")
		return
	}

	appt, err := s.services.Reservations.Swap(r.Context(), oldID, body.AppointmentID, userFromContext(r.Context()).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "appointment changed", "appointment": appt})
}

func (s *HTTPServer) handleMyAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := s.services.Reservations.GetCustomerAppointments(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if appointments == nil {
		appointments = []*models.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appointments})
}

// --- admin ---

func (s *HTTPServer) handleAdminAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := s.services.Admin.GetAllAppointments(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if appointments == nil {
		appointments = []*models.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appointments})
}

func (s *HTTPServer) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.services.Admin.GetDailyReport(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		if rows == nil {
			rows = []*models.ReportRow{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": rows})
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="daily_report_%s.xlsx"`, time.Now().Format("20060102")))
		if err := report.Write(w, rows); err != nil {
			// заголовки уже отправлены, остаётся только лог
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to write xlsx report")
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be json or xlsx")
	}
}

func (s *HTTPServer) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID     int64  `json:"user_id"`
		Speciality string `json:"speciality"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	provider, err := s.services.Admin.CreateProvider(r.Context(), body.UserID, body.Speciality)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"provider": provider})
}

func (s *HTTPServer) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderID int64  `json:"provider_id"`
		DayOfWeek  string `json:"day_of_week"`
		StartTime  string `json:"start_time"`
		EndTime    string `json:"end_time"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	schedule := &models.ProviderSchedule{
		ProviderID: body.ProviderID,
		DayOfWeek:  body.DayOfWeek,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
	}
	if err := s.services.Admin.CreateSchedule(r.Context(), schedule); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"schedule": schedule})
}

func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderID      int64  `json:"provider_id"`
		ServiceID       int64  `json:"service_id"`
		AppointmentDate string `json:"appointment_date"`
		StartTime       string `json:"start_time"`
		EndTime         string `json:"end_time"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	appt := &models.Appointment{
		ProviderID:      body.ProviderID,
		ServiceID:       body.ServiceID,
		AppointmentDate: strings.TrimSpace(body.AppointmentDate),
		StartTime:       strings.TrimSpace(body.StartTime),
		EndTime:         strings.TrimSpace(body.EndTime),
	}
	if err := s.services.Admin.CreateAppointment(r.Context(), appt); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"appointment": appt})
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		Price           int64  `json:"price"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	svc := &models.Service{Name: body.Name, DurationMinutes: body.DurationMinutes, Price: body.Price}
	if err := s.services.Admin.CreateService(r.Context(), svc); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"service": svc})
}

func (s *HTTPServer) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.services.Admin.DeleteAppointment(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "appointment deleted"})
}
