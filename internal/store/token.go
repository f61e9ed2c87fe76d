package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pronym/relay/internal/domain"
)

// TokenStore defines the interface for token whitelist persistence.
// Every authenticated request performs one GetByEntropy lookup; the delete
// operations back revocation and the expiry sweep.
type TokenStore interface {
	// Create saves a new whitelist row, assigning its ID.
	// Returns ErrEntropyExists if the entropy value is already in use;
	// issuance retries with fresh entropy on that error.
	Create(ctx context.Context, token *domain.AuthToken) error

	// GetByEntropy retrieves a whitelist row by its entropy value.
	// Returns ErrTokenNotFound if no such row exists.
	GetByEntropy(ctx context.Context, entropy int64) (*domain.AuthToken, error)

	// Delete removes a single whitelist row by ID.
	// Returns ErrTokenNotFound if the row does not exist.
	Delete(ctx context.Context, id int64) error

	// DeleteForMember removes all whitelist rows belonging to the member.
	DeleteForMember(ctx context.Context, memberID int64) (int64, error)

	// DeleteForAccount removes all whitelist rows belonging to any member of
	// the account.
	DeleteForAccount(ctx context.Context, accountID int64) (int64, error)

	// DeleteIssuedBefore removes all whitelist rows issued before the cutoff.
	// Used by the expiry sweep.
	DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a new TokenStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TokenStore
}

// LogStore defines the interface for request log persistence.
type LogStore interface {
	// Create saves a new log record, assigning its ID. Log records are
	// immutable once written.
	Create(ctx context.Context, record *domain.LogRecord) error

	// DeleteBefore removes all log records created before the cutoff.
	// Used by the retention sweep.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a new LogStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) LogStore
}
