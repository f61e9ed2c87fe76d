package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/platform/logger"
	"github.com/pronym/relay/internal/store"
)

// PostgresAccountStore implements store.AccountStore.
type PostgresAccountStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.AccountStore = (*PostgresAccountStore)(nil)

// NewPostgresAccountStore creates an account store backed by the given
// database handle.
func NewPostgresAccountStore(db store.DBTX, log *slog.Logger) *PostgresAccountStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAccountStore{
		db:     db,
		logger: log.With(slog.String("component", "account_store")),
	}
}

// Create implements store.AccountStore.
func (s *PostgresAccountStore) Create(ctx context.Context, account *domain.Account) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := account.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (name, is_active, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		account.Name, account.IsActive, account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err, "accounts_name_key") {
			return store.ErrDuplicate
		}
		log.Error("failed to create account",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID implements store.AccountStore.
func (s *PostgresAccountStore) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	var account domain.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at
		 FROM accounts
		 WHERE id = $1`,
		id,
	).Scan(&account.ID, &account.Name, &account.IsActive, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// WithTx implements store.AccountStore.
func (s *PostgresAccountStore) WithTx(tx *sql.Tx) store.AccountStore {
	return &PostgresAccountStore{db: tx, logger: s.logger}
}
