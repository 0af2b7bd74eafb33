package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"clinic/internal/domain"
	"clinic/internal/models"
)

const appointmentColumns = `id, provider_id, service_id, customer_id, appointment_date,
	start_time, end_time, status, cancelled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		a           models.Appointment
		customerID  sql.NullInt64
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.ProviderID, &a.ServiceID, &customerID, &a.AppointmentDate,
		&a.StartTime, &a.EndTime, &a.Status, &cancelledAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		a.CustomerID = &customerID.Int64
	}
	if cancelledAt.Valid {
		a.CancelledAt = &cancelledAt.Time
	}
	return &a, nil
}

func (db *DB) queryAppointments(ctx context.Context, query string, args ...interface{}) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

func (db *DB) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	a, err := scanAppointment(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment %d: %w", id, notFound(err))
	}
	return a, nil
}

func (db *DB) GetAppointmentBySlot(ctx context.Context, providerID int64, date, startTime, endTime string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE provider_id = ? AND appointment_date = ? AND start_time = ? AND end_time = ?`
	a, err := scanAppointment(db.QueryRowContext(ctx, query, providerID, date, startTime, endTime))
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment by slot: %w", notFound(err))
	}
	return a, nil
}

// UpdateAppointment применяет частичное обновление одной командой UPDATE.
// Порядок между конкурентными писателями не гарантируется: последняя запись побеждает.
func (db *DB) UpdateAppointment(ctx context.Context, id int64, upd models.AppointmentUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	now := time.Now()
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)

	switch {
	case upd.ClearCustomer:
		sets = append(sets, "customer_id = NULL")
	case upd.CustomerID != nil:
		sets = append(sets, "customer_id = ?")
		args = append(args, *upd.CustomerID)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
		if *upd.Status == models.StatusCancelled {
			sets = append(sets, "cancelled_at = ?")
			args = append(args, now)
		}
	}
	if upd.ServiceID != nil {
		sets = append(sets, "service_id = ?")
		args = append(args, *upd.ServiceID)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)

	query := `UPDATE appointments SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update appointment %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to update appointment %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt.Status == "" {
		appt.Status = models.StatusOpen
	}
	var customerID interface{}
	if appt.HasCustomer() {
		customerID = *appt.CustomerID
	}

	query := `INSERT INTO appointments (
				provider_id, service_id, customer_id, appointment_date,
				start_time, end_time, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		appt.ProviderID,
		appt.ServiceID,
		customerID,
		appt.AppointmentDate,
		appt.StartTime,
		appt.EndTime,
		appt.Status,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("appointment slot: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	appt.ID = id
	appt.CreatedAt = now
	appt.UpdatedAt = now
	return nil
}

func (db *DB) DeleteAppointment(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to delete appointment %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SwapAppointments освобождает старый слот и занимает новый в одной транзакции.
// Оба UPDATE защищены условиями WHERE: если старый слот уже не принадлежит
// клиенту или новый перестал быть свободным, транзакция откатывается и ни одна
// строка не меняется.
func (db *DB) SwapAppointments(ctx context.Context, oldID, newID, customerID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()

	// 1. Release the old slot
	res, err := tx.ExecContext(ctx, `UPDATE appointments
		SET customer_id = NULL, status = ?, updated_at = ?
		WHERE id = ? AND customer_id = ? AND status = ?`,
		models.StatusOpen, now, oldID, customerID, models.StatusReserved)
	if err != nil {
		return fmt.Errorf("failed to release appointment %d in tx: %w", oldID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("appointment %d is not held by customer %d: %w", oldID, customerID, domain.ErrNotFound)
	}

	// 2. Claim the new one
	res, err = tx.ExecContext(ctx, `UPDATE appointments
		SET customer_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND (customer_id IS NULL OR customer_id = 0) AND status NOT IN (?, ?)`,
		customerID, models.StatusReserved, now, newID, models.StatusReserved, models.StatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to claim appointment %d in tx: %w", newID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("appointment %d: %w", newID, domain.ErrSlotUnavailable)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit swap: %w", err)
	}
	return nil
}

func (db *DB) GetCustomerAppointments(ctx context.Context, customerID int64) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE customer_id = ? ORDER BY appointment_date, start_time`
	appointments, err := db.queryAppointments(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer appointments: %w", err)
	}
	return appointments, nil
}

func (db *DB) GetAllAppointments(ctx context.Context) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments ORDER BY appointment_date, start_time, id`
	appointments, err := db.queryAppointments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointments: %w", err)
	}
	return appointments, nil
}

// GetOpenAppointments возвращает свободные слоты врача на дату.
func (db *DB) GetOpenAppointments(ctx context.Context, providerID int64, date string) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE provider_id = ? AND appointment_date = ?
                AND (customer_id IS NULL OR customer_id = 0)
                AND status NOT IN (?, ?)
              ORDER BY start_time`
	appointments, err := db.queryAppointments(ctx, query, providerID, date, models.StatusReserved, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to get open appointments: %w", err)
	}
	return appointments, nil
}

// GetReportRows собирает отчёт по всем записям, отсортированный по дате приёма.
func (db *DB) GetReportRows(ctx context.Context) ([]*models.ReportRow, error) {
	query := `SELECT a.id, a.appointment_date, COALESCE(pu.name, ''), COALESCE(s.name, ''),
	                 COALESCE(cu.name, ''), a.start_time, a.end_time, a.status
              FROM appointments a
              LEFT JOIN providers p ON p.id = a.provider_id
              LEFT JOIN users pu ON pu.id = p.user_id
              LEFT JOIN services s ON s.id = a.service_id
              LEFT JOIN users cu ON cu.id = a.customer_id
              ORDER BY a.appointment_date, a.start_time, a.id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get report rows: %w", err)
	}
	defer rows.Close()

	var report []*models.ReportRow
	for rows.Next() {
		var r models.ReportRow
		if err := rows.Scan(&r.AppointmentID, &r.AppointmentDate, &r.ProviderName, &r.ServiceName,
			&r.CustomerName, &r.StartTime, &r.EndTime, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		report = append(report, &r)
	}
	return report, rows.Err()
}
