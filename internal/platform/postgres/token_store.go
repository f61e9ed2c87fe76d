package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/platform/logger"
	"github.com/pronym/relay/internal/store"
)

// PostgresTokenStore implements store.TokenStore.
type PostgresTokenStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.TokenStore = (*PostgresTokenStore)(nil)

// NewPostgresTokenStore creates a token store backed by the given database
// handle.
func NewPostgresTokenStore(db store.DBTX, log *slog.Logger) *PostgresTokenStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresTokenStore{
		db:     db,
		logger: log.With(slog.String("component", "token_store")),
	}
}

// Create implements store.TokenStore.
func (s *PostgresTokenStore) Create(ctx context.Context, token *domain.AuthToken) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := token.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO token_whitelist (entropy, member_id, issued_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		token.Entropy, token.MemberID, token.IssuedAt,
	).Scan(&token.ID)
	if err != nil {
		if isUniqueViolation(err, "token_whitelist_entropy_key") {
			return store.ErrEntropyExists
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrMissingMember)
		}
		log.Error("failed to create whitelist token",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create whitelist token: %w", err)
	}
	return nil
}

// GetByEntropy implements store.TokenStore.
func (s *PostgresTokenStore) GetByEntropy(ctx context.Context, entropy int64) (*domain.AuthToken, error) {
	var token domain.AuthToken
	err := s.db.QueryRowContext(ctx,
		`SELECT id, entropy, member_id, issued_at
		 FROM token_whitelist
		 WHERE entropy = $1`,
		entropy,
	).Scan(&token.ID, &token.Entropy, &token.MemberID, &token.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get whitelist token: %w", err)
	}
	return &token, nil
}

// Delete implements store.TokenStore.
func (s *PostgresTokenStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM token_whitelist WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete whitelist token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if rows == 0 {
		return store.ErrTokenNotFound
	}
	return nil
}

// DeleteForMember implements store.TokenStore.
func (s *PostgresTokenStore) DeleteForMember(ctx context.Context, memberID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM token_whitelist WHERE member_id = $1`, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete member tokens: %w", err)
	}
	return result.RowsAffected()
}

// DeleteForAccount implements store.TokenStore.
func (s *PostgresTokenStore) DeleteForAccount(ctx context.Context, accountID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM token_whitelist
		 WHERE member_id IN (
		     SELECT id FROM account_members WHERE account_id = $1
		 )`,
		accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete account tokens: %w", err)
	}
	return result.RowsAffected()
}

// DeleteIssuedBefore implements store.TokenStore.
func (s *PostgresTokenStore) DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM token_whitelist WHERE issued_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// WithTx implements store.TokenStore.
func (s *PostgresTokenStore) WithTx(tx *sql.Tx) store.TokenStore {
	return &PostgresTokenStore{db: tx, logger: s.logger}
}
