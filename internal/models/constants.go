package models

import "time"

const (
	StatusOpen      = "open"
	StatusReserved  = "reserved"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	RoleAdmin    = "admin"
	RoleProvider = "provider"
	RoleCustomer = "customer"
)

const (
	AbilityAdmin    = "admin"
	AbilityCustomer = "customer"
)

const (
	// DefaultLockTTL bounds how long a stuck holder can keep a slot locked.
	DefaultLockTTL = 10 * time.Second

	// DefaultTokenTTL время жизни bearer-токена
	DefaultTokenTTL = 20 * time.Minute

	// DateLayout and TimeLayout describe the accepted shapes of slot dates and times.
	DateLayout = "YYYY-MM-DD"
	TimeLayout = "HH:MM"

	// RegisterRateLimit запросов на регистрацию/вход в окне RegisterRateWindow
	RegisterRateLimit  = 10
	RegisterRateWindow = time.Minute

	// ReserveRateLimit попыток бронирования на клиента в окне ReserveRateWindow
	ReserveRateLimit  = 30
	ReserveRateWindow = time.Minute
)

func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusReserved, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleProvider, RoleCustomer:
		return true
	}
	return false
}
