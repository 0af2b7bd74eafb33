package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyReserved  = errors.New("appointment already reserved")
	ErrSlotContended    = errors.New("slot is currently being booked, retry shortly")
	ErrSlotUnavailable  = errors.New("appointment slot is not available")
	ErrProviderInactive = errors.New("provider is not accepting bookings")
	ErrDuplicate        = errors.New("already exists")
	ErrValidation       = errors.New("validation failed")
	ErrRateLimited      = errors.New("too many requests")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)
