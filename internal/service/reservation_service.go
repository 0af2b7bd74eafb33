package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic/internal/domain"
	"clinic/internal/events"
	"clinic/internal/metrics"
	"clinic/internal/models"

	"github.com/rs/zerolog"
)

type ReservationOptions struct {
	LockTTL         time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
}

// ReservationService owns Reserve and Swap. Every write to a slot row happens
// while holding the slot lock; the lock is released on every path once taken.
type ReservationService struct {
	appointments domain.AppointmentRepository
	providers    domain.ProviderRepository
	locker       domain.Locker
	limiter      domain.RateLimiter
	eventBus     domain.EventPublisher
	opts         ReservationOptions
	logger       *zerolog.Logger
}

func NewReservationService(
	appointments domain.AppointmentRepository,
	providers domain.ProviderRepository,
	locker domain.Locker,
	limiter domain.RateLimiter,
	eventBus domain.EventPublisher,
	opts ReservationOptions,
	logger *zerolog.Logger,
) *ReservationService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = models.DefaultLockTTL
	}
	return &ReservationService{
		appointments: appointments,
		providers:    providers,
		locker:       locker,
		limiter:      limiter,
		eventBus:     eventBus,
		opts:         opts,
		logger:       logger,
	}
}

func (s *ReservationService) Reserve(ctx context.Context, appointmentID, customerID int64) (*models.Appointment, error) {
	appt, err := s.reserve(ctx, appointmentID, customerID)
	metrics.IncReservation("reserve", outcome(err))
	if err != nil {
		s.logResult("reserve", appointmentID, customerID, err)
		return nil, err
	}

	s.logger.Info().Int64("appointment_id", appt.ID).Int64("customer_id", customerID).Msg("appointment reserved")
	s.publish(events.EventAppointmentReserved, appt, 0)
	return appt, nil
}

func (s *ReservationService) reserve(ctx context.Context, appointmentID, customerID int64) (*models.Appointment, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer is required", domain.ErrValidation)
	}
	if err := s.checkRateLimit(ctx, customerID); err != nil {
		return nil, err
	}

	appt, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	// Быстрый отказ без блокировки
	if err := bookable(appt); err != nil {
		return nil, err
	}
	if err := s.checkProvider(ctx, appt.ProviderID); err != nil {
		return nil, err
	}

	lease, ok, err := s.locker.Acquire(ctx, appt.LockKey(), s.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSlotContended
	}
	defer s.release(ctx, lease)

	// Авторитетная проверка под блокировкой
	current, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := bookable(current); err != nil {
		return nil, err
	}

	err = s.appointments.UpdateAppointment(ctx, appointmentID, models.AppointmentUpdate{
		CustomerID: models.Int64Ptr(customerID),
		Status:     models.StringPtr(models.StatusReserved),
	})
	if err != nil {
		return nil, err
	}

	return s.appointments.GetAppointment(ctx, appointmentID)
}

// Swap moves the customer's reservation from oldID to the open slot newID.
// The claim of the new slot runs under that slot's lock, and release-old plus
// claim-new commit together or not at all.
func (s *ReservationService) Swap(ctx context.Context, oldID, newID, customerID int64) (*models.Appointment, error) {
	appt, err := s.swap(ctx, oldID, newID, customerID)
	metrics.IncReservation("swap", outcome(err))
	if err != nil {
		s.logResult("swap", newID, customerID, err)
		return nil, err
	}

	s.logger.Info().
		Int64("old_appointment_id", oldID).
		Int64("appointment_id", appt.ID).
		Int64("customer_id", customerID).
		Msg("appointment swapped")
	s.publish(events.EventAppointmentSwapped, appt, oldID)
	return appt, nil
}

func (s *ReservationService) swap(ctx context.Context, oldID, newID, customerID int64) (*models.Appointment, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer is required", domain.ErrValidation)
	}
	if oldID == newID {
		return nil, fmt.Errorf("appointment %d is already yours: %w", newID, domain.ErrSlotUnavailable)
	}
	if err := s.checkRateLimit(ctx, customerID); err != nil {
		return nil, err
	}

	target, err := s.appointments.GetAppointment(ctx, newID)
	if err != nil {
		return nil, err
	}
	if target.State() != models.SlotOpen {
		return nil, fmt.Errorf("appointment %d: %w", newID, domain.ErrSlotUnavailable)
	}

	if err := s.checkOwned(ctx, oldID, customerID); err != nil {
		return nil, err
	}

	lease, ok, err := s.locker.Acquire(ctx, target.LockKey(), s.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSlotContended
	}
	defer s.release(ctx, lease)

	current, err := s.appointments.GetAppointment(ctx, newID)
	if err != nil {
		return nil, err
	}
	if current.State() != models.SlotOpen {
		return nil, fmt.Errorf("appointment %d: %w", newID, domain.ErrSlotUnavailable)
	}

	if err := s.appointments.SwapAppointments(ctx, oldID, newID, customerID); err != nil {
		return nil, err
	}

	return s.appointments.GetAppointment(ctx, newID)
}

func (s *ReservationService) GetCustomerAppointments(ctx context.Context, customerID int64) ([]*models.Appointment, error) {
	return s.appointments.GetCustomerAppointments(ctx, customerID)
}

// checkOwned: чужой или не забронированный слот выглядит для клиента как несуществующий.
func (s *ReservationService) checkOwned(ctx context.Context, id, customerID int64) error {
	old, err := s.appointments.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if !old.IsOwnedBy(customerID) || old.State() != models.SlotReserved {
		return fmt.Errorf("appointment %d for customer %d: %w", id, customerID, domain.ErrNotFound)
	}
	return nil
}

func (s *ReservationService) checkProvider(ctx context.Context, providerID int64) error {
	provider, err := s.providers.GetProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("provider %d: %w", providerID, domain.ErrSlotUnavailable)
		}
		return err
	}
	if !provider.IsActive {
		return fmt.Errorf("provider %d: %w", providerID, domain.ErrProviderInactive)
	}
	return nil
}

// checkRateLimit ограничивает частоту попыток одного клиента. Ошибка хранилища
// лимитов не блокирует бронирование.
func (s *ReservationService) checkRateLimit(ctx context.Context, customerID int64) error {
	if s.limiter == nil || s.opts.RateLimit <= 0 {
		return nil
	}
	allowed, err := s.limiter.CheckRateLimit(ctx, fmt.Sprintf("reserve:%d", customerID), s.opts.RateLimit, s.opts.RateLimitWindow)
	if err != nil {
		s.logger.Warn().Err(err).Int64("customer_id", customerID).Msg("rate limit check failed")
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *ReservationService) release(ctx context.Context, lease *domain.Lease) {
	if err := s.locker.Release(ctx, lease); err != nil {
		s.logger.Warn().Err(err).Str("key", lease.Key).Msg("slot lock release failed")
	}
}

func (s *ReservationService) publish(eventType string, appt *models.Appointment, previousID int64) {
	if s.eventBus == nil {
		return
	}
	payload := appointmentPayload(appt)
	payload.PreviousID = previousID
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (s *ReservationService) logResult(op string, appointmentID, customerID int64, err error) {
	ev := s.logger.Info()
	if isUnexpected(err) {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("op", op).Int64("appointment_id", appointmentID).Int64("customer_id", customerID).Msg("reservation rejected")
}

// bookable reports why appt cannot be reserved, or nil if it is open.
func bookable(appt *models.Appointment) error {
	switch appt.State() {
	case models.SlotOpen:
		return nil
	case models.SlotReserved:
		return fmt.Errorf("appointment %d: %w", appt.ID, domain.ErrAlreadyReserved)
	default:
		return fmt.Errorf("appointment %d is %s: %w", appt.ID, appt.State(), domain.ErrSlotUnavailable)
	}
}

func appointmentPayload(appt *models.Appointment) events.AppointmentEventPayload {
	p := events.AppointmentEventPayload{
		AppointmentID:   appt.ID,
		ProviderID:      appt.ProviderID,
		AppointmentDate: appt.AppointmentDate,
		StartTime:       appt.StartTime,
		EndTime:         appt.EndTime,
		Status:          appt.Status,
	}
	if appt.HasCustomer() {
		p.CustomerID = *appt.CustomerID
	}
	return p
}

var businessErrors = []struct {
	err     error
	outcome string
}{
	{domain.ErrNotFound, "not_found"},
	{domain.ErrAlreadyReserved, "already_reserved"},
	{domain.ErrSlotContended, "contended"},
	{domain.ErrSlotUnavailable, "unavailable"},
	{domain.ErrProviderInactive, "provider_inactive"},
	{domain.ErrRateLimited, "rate_limited"},
	{domain.ErrValidation, "invalid"},
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, b := range businessErrors {
		if errors.Is(err, b.err) {
			return b.outcome
		}
	}
	return "error"
}

func isUnexpected(err error) bool {
	return outcome(err) == "error"
}
