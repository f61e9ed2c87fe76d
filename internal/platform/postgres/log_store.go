package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/store"
)

// PostgresLogStore implements store.LogStore.
type PostgresLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.LogStore = (*PostgresLogStore)(nil)

// NewPostgresLogStore creates a request log store backed by the given
// database handle.
func NewPostgresLogStore(db store.DBTX, log *slog.Logger) *PostgresLogStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresLogStore{
		db:     db,
		logger: log.With(slog.String("component", "log_store")),
	}
}

// Create implements store.LogStore.
func (s *PostgresLogStore) Create(ctx context.Context, record *domain.LogRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO request_log (
		     trace_id, endpoint_name, source_ip, path, host, port,
		     is_authenticated, member_id, method, request_headers,
		     request_payload, response_payload, status_code, created_at
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		record.TraceID,
		record.EndpointName,
		record.SourceIP,
		record.Path,
		record.Host,
		record.Port,
		record.IsAuthenticated,
		record.MemberID,
		record.Method,
		record.RequestHeaders,
		record.RequestPayload,
		record.ResponsePayload,
		record.StatusCode,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to create log record: %w", err)
	}
	return nil
}

// DeleteBefore implements store.LogStore.
func (s *PostgresLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM request_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune log records: %w", err)
	}
	return result.RowsAffected()
}

// WithTx implements store.LogStore.
func (s *PostgresLogStore) WithTx(tx *sql.Tx) store.LogStore {
	return &PostgresLogStore{db: tx, logger: s.logger}
}
