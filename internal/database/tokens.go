package database

import (
	"context"
	"fmt"
	"time"

	"clinic/internal/models"
)

func (db *DB) CreateToken(ctx context.Context, token *models.AccessToken) error {
	query := `INSERT INTO access_tokens (user_id, token_hash, abilities, expires_at, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		token.UserID, token.TokenHash, models.JoinAbilities(token.Abilities), token.ExpiresAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	token.ID = id
	token.CreatedAt = now
	return nil
}

func (db *DB) GetTokenByHash(ctx context.Context, hash string) (*models.AccessToken, error) {
	var (
		t         models.AccessToken
		abilities string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, abilities, expires_at, created_at FROM access_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &abilities, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", notFound(err))
	}
	t.Abilities = models.SplitAbilities(abilities)
	return &t, nil
}

func (db *DB) DeleteToken(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM access_tokens WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (db *DB) DeleteUserTokens(ctx context.Context, userID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM access_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}
	return nil
}

func (db *DB) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM access_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}
