package domain

import (
	"context"
	"time"

	"clinic/internal/models"
)

type AppointmentRepository interface {
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	GetAppointmentBySlot(ctx context.Context, providerID int64, date, startTime, endTime string) (*models.Appointment, error)
	UpdateAppointment(ctx context.Context, id int64, upd models.AppointmentUpdate) error
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
	SwapAppointments(ctx context.Context, oldID, newID, customerID int64) error
	GetCustomerAppointments(ctx context.Context, customerID int64) ([]*models.Appointment, error)
	GetAllAppointments(ctx context.Context) ([]*models.Appointment, error)
	GetOpenAppointments(ctx context.Context, providerID int64, date string) ([]*models.Appointment, error)
	GetReportRows(ctx context.Context) ([]*models.ReportRow, error)
}

type ProviderRepository interface {
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	GetProviderByUserID(ctx context.Context, userID int64) (*models.Provider, error)
	GetProviders(ctx context.Context) ([]*models.Provider, error)
	CreateProvider(ctx context.Context, provider *models.Provider) error
	GetSchedule(ctx context.Context, providerID int64, dayOfWeek, startTime, endTime string) (*models.ProviderSchedule, error)
	GetSchedulesByDay(ctx context.Context, providerID int64, dayOfWeek string) ([]*models.ProviderSchedule, error)
	CreateSchedule(ctx context.Context, schedule *models.ProviderSchedule) error
}

type ServiceRepository interface {
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetServiceByName(ctx context.Context, name string) (*models.Service, error)
	GetActiveServices(ctx context.Context) ([]*models.Service, error)
	CreateService(ctx context.Context, service *models.Service) error
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUserRole(ctx context.Context, id int64, role string) error
}

type TokenRepository interface {
	CreateToken(ctx context.Context, token *models.AccessToken) error
	GetTokenByHash(ctx context.Context, hash string) (*models.AccessToken, error)
	DeleteToken(ctx context.Context, id int64) error
	DeleteUserTokens(ctx context.Context, userID int64) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Lease is a held slot lock. Owner is the token that proves ownership on release.
type Lease struct {
	Key        string
	Owner      string
	AcquiredAt time.Time
	TTL        time.Duration
}

// Locker is a named, time-bounded mutual-exclusion primitive. Acquire never
// blocks waiting for a holder: when the key is held it returns acquired=false.
// Release is idempotent and safe to call with a nil lease.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error)
	Release(ctx context.Context, lease *Lease) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type ReservationService interface {
	Reserve(ctx context.Context, appointmentID, customerID int64) (*models.Appointment, error)
	Swap(ctx context.Context, oldAppointmentID, newAppointmentID, customerID int64) (*models.Appointment, error)
	GetCustomerAppointments(ctx context.Context, customerID int64) ([]*models.Appointment, error)
}

type AdminService interface {
	CreateProvider(ctx context.Context, userID int64, speciality string) (*models.Provider, error)
	CreateSchedule(ctx context.Context, schedule *models.ProviderSchedule) error
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	CreateService(ctx context.Context, service *models.Service) error
	DeleteAppointment(ctx context.Context, id int64) error
	GetAllAppointments(ctx context.Context) ([]*models.Appointment, error)
	GetDailyReport(ctx context.Context) ([]*models.ReportRow, error)
}

type CatalogService interface {
	GetProviders(ctx context.Context) ([]*models.Provider, error)
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	GetAvailableSlots(ctx context.Context, providerID int64, date, dayOfWeek string) (*models.AvailableSlots, error)
	GetActiveServices(ctx context.Context) ([]*models.Service, error)
}

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Logout(ctx context.Context, token *models.AccessToken) error
	Authenticate(ctx context.Context, plainToken string) (*models.User, *models.AccessToken, error)
}
