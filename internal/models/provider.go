package models

import "time"

type Provider struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Speciality string    `json:"speciality"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ProviderSchedule struct {
	ID         int64     `json:"id"`
	ProviderID int64     `json:"provider_id"`
	DayOfWeek  string    `json:"day_of_week"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
}

type Service struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           int64     `json:"price"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AvailableSlots is what a customer sees for one provider on one day.
type AvailableSlots struct {
	ProviderID   int64               `json:"provider_id"`
	Date         string              `json:"date"`
	DayOfWeek    string              `json:"day_of_week,omitempty"`
	Schedules    []*ProviderSchedule `json:"schedules"`
	Appointments []*Appointment      `json:"appointments"`
}
