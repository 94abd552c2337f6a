package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"useraccounts/internal/models"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// List returns newest first, narrowed by filter.
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	// Update writes every mutable column and refreshes updated_at.
	Update(ctx context.Context, user *models.User) error
}

type AuthTokenRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.AuthToken, error)
	Resolve(ctx context.Context, key string) (uuid.UUID, error)
}

type OutboxRepository interface {
	Save(ctx context.Context, event *models.OutboxEvent) error
	// ClaimBatch leases up to batchSize pending events for lease. Claimed
	// events are skipped by other workers until marked or the lease runs out.
	ClaimBatch(ctx context.Context, batchSize, maxAttempts int, lease time.Duration) ([]*models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Store groups the repositories; WithinTx runs fn against a transactional view.
// Nested WithinTx calls join the outer transaction.
type Store interface {
	Users() UserRepository
	AuthTokens() AuthTokenRepository
	Outbox() OutboxRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
