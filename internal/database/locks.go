package database

import (
	"context"
	"fmt"
	"time"
)

// AcquireLease записывает аренду ключа за владельцем, если ключ свободен или
// прежняя аренда истекла. Проверка и запись выполняются одним UPSERT.
func (db *DB) AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	query := `INSERT INTO slot_locks (lock_key, owner, expires_at) VALUES (?, ?, ?)
              ON CONFLICT(lock_key) DO UPDATE SET
                owner = excluded.owner,
                expires_at = excluded.expires_at
              WHERE slot_locks.expires_at <= ?`
	result, err := db.ExecContext(ctx, query, key, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseLease удаляет аренду только если она всё ещё принадлежит owner.
func (db *DB) ReleaseLease(ctx context.Context, key, owner string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM slot_locks WHERE lock_key = ? AND owner = ?`, key, owner)
	if err != nil {
		return false, fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (db *DB) DeleteExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM slot_locks WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired leases: %w", err)
	}
	return result.RowsAffected()
}
