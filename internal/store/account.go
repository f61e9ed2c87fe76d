package store

import (
	"context"
	"database/sql"

	"github.com/pronym/relay/internal/domain"
)

// AccountStore defines the interface for account persistence.
type AccountStore interface {
	// Create saves a new account to the store, assigning its ID.
	// Returns ErrDuplicate if the account name is already taken.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique ID.
	// Returns ErrAccountNotFound if the account does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Account, error)

	// WithTx returns a new AccountStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) AccountStore
}

// MemberStore defines the interface for account member persistence.
type MemberStore interface {
	// Create saves a new account member to the store, assigning its ID.
	// Returns ErrUsernameExists if the username is already taken.
	// Returns validation errors from the domain AccountMember if data is invalid.
	Create(ctx context.Context, member *domain.AccountMember) error

	// GetByID retrieves a member by their unique ID.
	// Returns ErrMemberNotFound if the member does not exist.
	GetByID(ctx context.Context, id int64) (*domain.AccountMember, error)

	// GetByUsername retrieves a member by their username.
	// Returns ErrMemberNotFound if the member does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.AccountMember, error)

	// WithTx returns a new MemberStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) MemberStore
}
