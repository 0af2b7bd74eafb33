package models

import (
	"fmt"
	"time"
)

type Appointment struct {
	ID              int64      `json:"id"`
	ProviderID      int64      `json:"provider_id"`
	ServiceID       int64      `json:"service_id"`
	CustomerID      *int64     `json:"customer_id"`
	AppointmentDate string     `json:"appointment_date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	Status          string     `json:"status"` // open, reserved, cancelled, completed
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SlotState is the booking state of an appointment as seen by the reservation core.
type SlotState int

const (
	SlotOpen SlotState = iota
	SlotReserved
	SlotCancelled
	// SlotClosed covers rows that are neither bookable nor held, e.g. a finished visit.
	SlotClosed
)

func (s SlotState) String() string {
	switch s {
	case SlotOpen:
		return "open"
	case SlotReserved:
		return "reserved"
	case SlotCancelled:
		return "cancelled"
	default:
		return "closed"
	}
}

// State derives the slot state from the customer reference and status columns.
// A row without a customer whose status is anything but reserved or cancelled
// is open; this keeps legacy rows that used "completed" as the unbooked marker
// bookable.
func (a *Appointment) State() SlotState {
	switch {
	case a.Status == StatusCancelled:
		return SlotCancelled
	case a.HasCustomer() && a.Status == StatusReserved:
		return SlotReserved
	case !a.HasCustomer() && a.Status != StatusReserved:
		return SlotOpen
	default:
		return SlotClosed
	}
}

func (a *Appointment) HasCustomer() bool {
	return a.CustomerID != nil && *a.CustomerID != 0
}

func (a *Appointment) IsOwnedBy(customerID int64) bool {
	return a.HasCustomer() && *a.CustomerID == customerID
}

// LockKey identifies the slot-level mutual-exclusion domain. It is independent of
// the customer so that everyone racing for the same slot contends on one key.
func (a *Appointment) LockKey() string {
	return SlotLockKey(a.ProviderID, a.AppointmentDate, a.StartTime)
}

func SlotLockKey(providerID int64, date, startTime string) string {
	return fmt.Sprintf("appointment_lock:provider_%d:%s:%s", providerID, date, startTime)
}

// AppointmentUpdate is a partial update. Nil fields are left untouched;
// ClearCustomer sets customer_id to NULL.
type AppointmentUpdate struct {
	CustomerID    *int64
	ClearCustomer bool
	Status        *string
	ServiceID     *int64
}

func (u AppointmentUpdate) IsEmpty() bool {
	return u.CustomerID == nil && !u.ClearCustomer && u.Status == nil && u.ServiceID == nil
}

// ReportRow is one line of the admin daily report.
type ReportRow struct {
	AppointmentID   int64  `json:"id"`
	AppointmentDate string `json:"appointment_date"`
	ProviderName    string `json:"provider"`
	ServiceName     string `json:"service"`
	CustomerName    string `json:"customer,omitempty"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
}

func Int64Ptr(v int64) *int64 {
	return &v
}

func StringPtr(v string) *string {
	return &v
}
