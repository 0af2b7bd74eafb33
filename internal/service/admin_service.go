package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic/internal/domain"
	"clinic/internal/events"
	"clinic/internal/models"

	"github.com/rs/zerolog"
)

// AdminService covers the admin-only reference data and slot management.
// Every create runs a pre-check read for duplicates; the unique indexes in
// the store back the check up when two admins race.
type AdminService struct {
	appointments domain.AppointmentRepository
	providers    domain.ProviderRepository
	services     domain.ServiceRepository
	users        domain.UserRepository
	locker       domain.Locker
	eventBus     domain.EventPublisher
	lockTTL      time.Duration
	logger       *zerolog.Logger
}

func NewAdminService(
	appointments domain.AppointmentRepository,
	providers domain.ProviderRepository,
	services domain.ServiceRepository,
	users domain.UserRepository,
	locker domain.Locker,
	eventBus domain.EventPublisher,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *AdminService {
	if lockTTL <= 0 {
		lockTTL = models.DefaultLockTTL
	}
	return &AdminService{
		appointments: appointments,
		providers:    providers,
		services:     services,
		users:        users,
		locker:       locker,
		eventBus:     eventBus,
		lockTTL:      lockTTL,
		logger:       logger,
	}
}

// CreateProvider делает пользователя врачом и меняет его роль на provider.
func (s *AdminService) CreateProvider(ctx context.Context, userID int64, speciality string) (*models.Provider, error) {
	speciality = strings.TrimSpace(speciality)
	if speciality == "" {
		return nil, fmt.Errorf("%w: speciality is required", domain.ErrValidation)
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	_, err := s.providers.GetProviderByUserID(ctx, userID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("provider for user %d: %w", userID, domain.ErrDuplicate)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	provider := &models.Provider{UserID: userID, Speciality: speciality, IsActive: true}
	if err := s.providers.CreateProvider(ctx, provider); err != nil {
		return nil, err
	}
	if err := s.users.UpdateUserRole(ctx, userID, models.RoleProvider); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("provider_id", provider.ID).Int64("user_id", userID).Msg("provider created")
	return s.providers.GetProvider(ctx, provider.ID)
}

func (s *AdminService) CreateSchedule(ctx context.Context, schedule *models.ProviderSchedule) error {
	schedule.DayOfWeek = strings.ToLower(strings.TrimSpace(schedule.DayOfWeek))
	if schedule.DayOfWeek == "" {
		return fmt.Errorf("%w: day_of_week is required", domain.ErrValidation)
	}
	if !models.ValidTimeRange(schedule.StartTime, schedule.EndTime) {
		return fmt.Errorf("%w: start_time and end_time must be HH:MM with end after start", domain.ErrValidation)
	}

	if _, err := s.providers.GetProvider(ctx, schedule.ProviderID); err != nil {
		return err
	}

	_, err := s.providers.GetSchedule(ctx, schedule.ProviderID, schedule.DayOfWeek, schedule.StartTime, schedule.EndTime)
	switch {
	case err == nil:
		return fmt.Errorf("provider schedule: %w", domain.ErrDuplicate)
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	return s.providers.CreateSchedule(ctx, schedule)
}

// CreateAppointment публикует свободный слот.
func (s *AdminService) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if !models.ValidDate(appt.AppointmentDate) {
		return fmt.Errorf("%w: appointment_date must be %s", domain.ErrValidation, models.DateLayout)
	}
	if !models.ValidTimeRange(appt.StartTime, appt.EndTime) {
		return fmt.Errorf("%w: start_time and end_time must be HH:MM with end after start", domain.ErrValidation)
	}

	provider, err := s.providers.GetProvider(ctx, appt.ProviderID)
	if err != nil {
		return err
	}
	if !provider.IsActive {
		return fmt.Errorf("provider %d: %w", provider.ID, domain.ErrProviderInactive)
	}
	if _, err := s.services.GetService(ctx, appt.ServiceID); err != nil {
		return err
	}

	_, err = s.appointments.GetAppointmentBySlot(ctx, appt.ProviderID, appt.AppointmentDate, appt.StartTime, appt.EndTime)
	switch {
	case err == nil:
		return fmt.Errorf("appointment slot: %w", domain.ErrDuplicate)
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	appt.CustomerID = nil
	appt.Status = models.StatusOpen
	if err := s.appointments.CreateAppointment(ctx, appt); err != nil {
		return err
	}

	s.publish(events.EventAppointmentCreated, appt)
	return nil
}

func (s *AdminService) CreateService(ctx context.Context, service *models.Service) error {
	service.Name = strings.TrimSpace(service.Name)
	if service.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if service.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be positive", domain.ErrValidation)
	}
	if service.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}

	_, err := s.services.GetServiceByName(ctx, service.Name)
	switch {
	case err == nil:
		return fmt.Errorf("service %q: %w", service.Name, domain.ErrDuplicate)
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	service.IsActive = true
	return s.services.CreateService(ctx, service)
}

// DeleteAppointment удаляет слот под той же блокировкой, что и бронирование,
// чтобы не удалить строку посреди чужой брони.
func (s *AdminService) DeleteAppointment(ctx context.Context, id int64) error {
	appt, err := s.appointments.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	lease, ok, err := s.locker.Acquire(ctx, appt.LockKey(), s.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	if !ok {
		return domain.ErrSlotContended
	}
	defer func() {
		if err := s.locker.Release(ctx, lease); err != nil {
			s.logger.Warn().Err(err).Str("key", lease.Key).Msg("slot lock release failed")
		}
	}()

	if err := s.appointments.DeleteAppointment(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Int64("appointment_id", id).Msg("appointment deleted")
	s.publish(events.EventAppointmentDeleted, appt)
	return nil
}

func (s *AdminService) GetAllAppointments(ctx context.Context) ([]*models.Appointment, error) {
	return s.appointments.GetAllAppointments(ctx)
}

// GetDailyReport returns every appointment ordered by date and start time.
func (s *AdminService) GetDailyReport(ctx context.Context) ([]*models.ReportRow, error) {
	return s.appointments.GetReportRows(ctx)
}

func (s *AdminService) publish(eventType string, appt *models.Appointment) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, appointmentPayload(appt)); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
