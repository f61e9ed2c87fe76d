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

// PostgresMemberStore implements store.MemberStore.
type PostgresMemberStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.MemberStore = (*PostgresMemberStore)(nil)

// NewPostgresMemberStore creates a member store backed by the given database
// handle.
func NewPostgresMemberStore(db store.DBTX, log *slog.Logger) *PostgresMemberStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresMemberStore{
		db:     db,
		logger: log.With(slog.String("component", "member_store")),
	}
}

// Create implements store.MemberStore.
func (s *PostgresMemberStore) Create(ctx context.Context, member *domain.AccountMember) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := member.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO account_members (account_id, username, hashed_password, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		member.AccountID, member.Username, member.HashedPassword, member.CreatedAt,
	).Scan(&member.ID)
	if err != nil {
		if isUniqueViolation(err, "account_members_username_key") {
			return store.ErrUsernameExists
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrMissingAccount)
		}
		log.Error("failed to create account member",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create account member: %w", err)
	}
	return nil
}

// GetByID implements store.MemberStore.
func (s *PostgresMemberStore) GetByID(ctx context.Context, id int64) (*domain.AccountMember, error) {
	return s.scanMember(s.db.QueryRowContext(ctx,
		`SELECT id, account_id, username, hashed_password, created_at
		 FROM account_members
		 WHERE id = $1`,
		id))
}

// GetByUsername implements store.MemberStore.
func (s *PostgresMemberStore) GetByUsername(ctx context.Context, username string) (*domain.AccountMember, error) {
	return s.scanMember(s.db.QueryRowContext(ctx,
		`SELECT id, account_id, username, hashed_password, created_at
		 FROM account_members
		 WHERE username = $1`,
		username))
}

func (s *PostgresMemberStore) scanMember(row *sql.Row) (*domain.AccountMember, error) {
	var member domain.AccountMember
	err := row.Scan(
		&member.ID,
		&member.AccountID,
		&member.Username,
		&member.HashedPassword,
		&member.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get account member: %w", err)
	}
	return &member, nil
}

// WithTx implements store.MemberStore.
func (s *PostgresMemberStore) WithTx(tx *sql.Tx) store.MemberStore {
	return &PostgresMemberStore{db: tx, logger: s.logger}
}
