package service

import (
	"context"
	"fmt"
	"strings"

	"clinic/internal/domain"
	"clinic/internal/models"
)

type CatalogService struct {
	providers    domain.ProviderRepository
	services     domain.ServiceRepository
	appointments domain.AppointmentRepository
}

func NewCatalogService(providers domain.ProviderRepository, services domain.ServiceRepository, appointments domain.AppointmentRepository) *CatalogService {
	return &CatalogService{providers: providers, services: services, appointments: appointments}
}

// GetProviders returns ErrNotFound when no provider has been registered yet.
func (s *CatalogService) GetProviders(ctx context.Context) ([]*models.Provider, error) {
	providers, err := s.providers.GetProviders(ctx)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers: %w", domain.ErrNotFound)
	}
	return providers, nil
}

func (s *CatalogService) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	return s.providers.GetProvider(ctx, id)
}

// GetAvailableSlots собирает свободные слоты врача на дату и его расписание
// на указанный день недели (если день передан).
func (s *CatalogService) GetAvailableSlots(ctx context.Context, providerID int64, date, dayOfWeek string) (*models.AvailableSlots, error) {
	if !models.ValidDate(date) {
		return nil, fmt.Errorf("%w: date must be %s", domain.ErrValidation, models.DateLayout)
	}
	if _, err := s.providers.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	open, err := s.appointments.GetOpenAppointments(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	result := &models.AvailableSlots{
		ProviderID:   providerID,
		Date:         date,
		DayOfWeek:    strings.ToLower(strings.TrimSpace(dayOfWeek)),
		Schedules:    []*models.ProviderSchedule{},
		Appointments: []*models.Appointment{},
	}
	if open != nil {
		result.Appointments = open
	}
	if result.DayOfWeek != "" {
		schedules, err := s.providers.GetSchedulesByDay(ctx, providerID, result.DayOfWeek)
		if err != nil {
			return nil, err
		}
		if schedules != nil {
			result.Schedules = schedules
		}
	}
	return result, nil
}

func (s *CatalogService) GetActiveServices(ctx context.Context) ([]*models.Service, error) {
	services, err := s.services.GetActiveServices(ctx)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []*models.Service{}
	}
	return services, nil
}
