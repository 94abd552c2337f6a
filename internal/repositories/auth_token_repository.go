package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"useraccounts/internal/models"
	"useraccounts/internal/utils"
)

type authTokenRepository struct {
	DB DBTX
}

func NewAuthTokenRepository(db DBTX) AuthTokenRepository {
	return &authTokenRepository{DB: db}
}

// GetOrCreate returns the existing key of the account or stores a fresh one.
// The no-op DO UPDATE makes RETURNING yield the already stored row.
func (r *authTokenRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.AuthToken, error) {
	key, err := utils.NewOpaqueToken(utils.AuthTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	const q = `
		INSERT INTO auth_tokens (key, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING key, user_id, created_at
	`
	t := &models.AuthToken{}
	if err := r.DB.QueryRowContext(ctx, q, key, userID).Scan(&t.Key, &t.UserID, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("get or create token: %w", err)
	}
	return t, nil
}

func (r *authTokenRepository) Resolve(ctx context.Context, key string) (uuid.UUID, error) {
	const q = `SELECT user_id FROM auth_tokens WHERE key = $1`
	var userID uuid.UUID
	if err := r.DB.QueryRowContext(ctx, q, key).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("resolve token: %w", err)
	}
	return userID, nil
}
