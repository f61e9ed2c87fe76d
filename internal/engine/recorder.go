package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/store"
)

// StoreRecorder persists audit records through a LogStore.
type StoreRecorder struct {
	logs   store.LogStore
	logger *slog.Logger
}

// NewStoreRecorder creates a Recorder backed by the given log store.
func NewStoreRecorder(logs store.LogStore, log *slog.Logger) *StoreRecorder {
	if logs == nil {
		panic("logs store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &StoreRecorder{
		logs:   logs,
		logger: log.With(slog.String("component", "recorder")),
	}
}

// Record implements Recorder.
func (r *StoreRecorder) Record(ctx context.Context, rec *domain.LogRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	if err := r.logs.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist audit record: %w", err)
	}
	r.logger.Debug("audit record written",
		slog.String("endpoint", rec.EndpointName),
		slog.Int("status", rec.StatusCode),
		slog.String("trace_id", rec.TraceID))
	return nil
}
