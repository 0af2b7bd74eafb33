package database

import (
	"context"
	"fmt"
	"time"

	"clinic/internal/domain"
	"clinic/internal/models"
)

const providerSelect = `SELECT p.id, p.user_id, COALESCE(u.name, ''), p.speciality, p.is_active, p.created_at, p.updated_at
              FROM providers p LEFT JOIN users u ON u.id = p.user_id`

func scanProvider(row rowScanner) (*models.Provider, error) {
	var p models.Provider
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Speciality, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	p, err := scanProvider(db.QueryRowContext(ctx, providerSelect+` WHERE p.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get provider %d: %w", id, notFound(err))
	}
	return p, nil
}

func (db *DB) GetProviderByUserID(ctx context.Context, userID int64) (*models.Provider, error) {
	p, err := scanProvider(db.QueryRowContext(ctx, providerSelect+` WHERE p.user_id = ?`, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get provider by user %d: %w", userID, notFound(err))
	}
	return p, nil
}

func (db *DB) GetProviders(ctx context.Context) ([]*models.Provider, error) {
	rows, err := db.QueryContext(ctx, providerSelect+` ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get providers: %w", err)
	}
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (db *DB) CreateProvider(ctx context.Context, provider *models.Provider) error {
	query := `INSERT INTO providers (user_id, speciality, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, provider.UserID, provider.Speciality, provider.IsActive, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider for user %d: %w", provider.UserID, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create provider: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	provider.ID = id
	provider.CreatedAt = now
	provider.UpdatedAt = now
	return nil
}

func (db *DB) SetProviderActive(ctx context.Context, id int64, active bool) error {
	result, err := db.ExecContext(ctx, `UPDATE providers SET is_active = ?, updated_at = ? WHERE id = ?`, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update provider %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update provider %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

const scheduleColumns = `id, provider_id, day_of_week, start_time, end_time, created_at`

func scanSchedule(row rowScanner) (*models.ProviderSchedule, error) {
	var s models.ProviderSchedule
	if err := row.Scan(&s.ID, &s.ProviderID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) GetSchedule(ctx context.Context, providerID int64, dayOfWeek, startTime, endTime string) (*models.ProviderSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM provider_schedules
              WHERE provider_id = ? AND day_of_week = ? AND start_time = ? AND end_time = ?`
	s, err := scanSchedule(db.QueryRowContext(ctx, query, providerID, dayOfWeek, startTime, endTime))
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", notFound(err))
	}
	return s, nil
}

func (db *DB) GetSchedulesByDay(ctx context.Context, providerID int64, dayOfWeek string) ([]*models.ProviderSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM provider_schedules
              WHERE provider_id = ? AND day_of_week = ? ORDER BY start_time`
	rows, err := db.QueryContext(ctx, query, providerID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.ProviderSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (db *DB) CreateSchedule(ctx context.Context, schedule *models.ProviderSchedule) error {
	query := `INSERT INTO provider_schedules (provider_id, day_of_week, start_time, end_time, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, schedule.ProviderID, schedule.DayOfWeek, schedule.StartTime, schedule.EndTime, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider schedule: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	schedule.ID = id
	schedule.CreatedAt = now
	return nil
}
