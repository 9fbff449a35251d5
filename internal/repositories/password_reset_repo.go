package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/kafedra/internal/database"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const resetTokenColumns = `id, user_id, token_hash, expires_at, used_at, created_at`

// PasswordResetRepository stores hashed password reset tokens
type PasswordResetRepository struct {
	db *database.DB
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func scanResetToken(scanner rowScanner) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	if err := scanner.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

// Create stores a new token for userID. Earlier unused tokens of the user
// are invalidated in the same transaction.
func (r *PasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	var created *models.PasswordResetToken

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE password_reset_tokens SET used_at = NOW() WHERE user_id = $1 AND used_at IS NULL`,
			userID,
		); err != nil {
			return database.MapPostgresError(err)
		}

		query := `
			INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING ` + resetTokenColumns

		t, err := scanResetToken(tx.QueryRow(ctx, query, uuid.New().String(), userID, tokenHash, expiresAt.UTC()))
		if err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}
	return created, nil
}

func (r *PasswordResetRepository) GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `SELECT ` + resetTokenColumns + ` FROM password_reset_tokens WHERE token_hash = $1`
	return scanResetToken(r.db.Pool.QueryRow(ctx, query, tokenHash))
}

// Redeem marks the token used and sets the new password hash atomically.
// A token that was already used or has expired yields models.ErrInvalidToken.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenID, userID, passwordHash string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE password_reset_tokens SET used_at = NOW()
			 WHERE id = $1 AND user_id = $2 AND used_at IS NULL AND expires_at > NOW()`,
			tokenID, userID,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrInvalidToken
		}

		result, err = tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			userID, passwordHash,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// DeleteExpired removes tokens that expired or were used before cutoff
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at < $1 OR used_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
