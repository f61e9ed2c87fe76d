// Package service holds application services that coordinate stores and
// domain logic above the persistence layer.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/platform/logger"
	"github.com/pronym/relay/internal/store"
)

// ErrInvalidCredentials is returned when a username/password pair does not
// match a member. Unknown usernames and wrong passwords are indistinguishable
// to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountService provisions accounts and authenticates members.
type AccountService struct {
	db       *sql.DB
	accounts store.AccountStore
	members  store.MemberStore
	logger   *slog.Logger
}

// NewAccountService creates an AccountService. The database handle is used
// to run provisioning transactionally.
func NewAccountService(db *sql.DB, accounts store.AccountStore, members store.MemberStore, log *slog.Logger) *AccountService {
	if log == nil {
		log = slog.Default()
	}
	return &AccountService{
		db:       db,
		accounts: accounts,
		members:  members,
		logger:   log.With(slog.String("component", "account_service")),
	}
}

// Provision creates an account and its first member atomically. The password
// is hashed with bcrypt before anything touches the store.
func (s *AccountService) Provision(ctx context.Context, accountName, username, password string) (*domain.Account, *domain.AccountMember, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := domain.NewAccount(accountName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var member *domain.AccountMember
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.accounts.WithTx(tx).Create(ctx, account); err != nil {
			return err
		}
		m, err := domain.NewAccountMember(account.ID, username, string(hashed))
		if err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		if err := s.members.WithTx(tx).Create(ctx, m); err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info("provisioned account",
		slog.Int64("account_id", account.ID),
		slog.Int64("member_id", member.ID))
	return account, member, nil
}

// AddMember creates an additional member under an existing account.
func (s *AccountService) AddMember(ctx context.Context, accountID int64, username, password string) (*domain.AccountMember, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	member, err := domain.NewAccountMember(accountID, username, string(hashed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	if err := s.members.Create(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// Authenticate verifies a username/password pair and returns the member.
// Any failure maps to ErrInvalidCredentials; a bcrypt comparison still runs
// for unknown usernames so response timing does not reveal which part was
// wrong.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*domain.AccountMember, error) {
	member, err := s.members.GetByUsername(ctx, username)
	if err != nil {
		if store.IsNotFoundError(err) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password)) //nolint:errcheck
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByID(ctx, member.AccountID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrInvalidCredentials
	}

	return member, nil
}

// dummyHash is a valid bcrypt hash of an unguessable value, compared against
// when the username is unknown.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
