// Package task runs the periodic maintenance jobs: expiring whitelist tokens
// and pruning old audit records.
package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pronym/relay/internal/store"
	"github.com/pronym/relay/internal/token"
)

// Sweeper periodically removes expired whitelist tokens and audit records
// past the retention window.
type Sweeper struct {
	tokens    *token.Service
	logs      store.LogStore
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewSweeper creates a Sweeper. interval controls how often both jobs run;
// retention is how long audit records are kept.
func NewSweeper(tokens *token.Service, logs store.LogStore, interval, retention time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		tokens:    tokens,
		logs:      logs,
		interval:  interval,
		retention: retention,
		logger:    log.With(slog.String("component", "sweeper")),
		stop:      make(chan struct{}),
	}
}

// Start launches the sweep loop in a goroutine. A sweep runs immediately,
// then on every tick until Stop is called or the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.tokens.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("token sweep failed",
			slog.String("error", err.Error()))
	} else if removed > 0 {
		s.logger.Info("token sweep completed",
			slog.Int64("removed", removed))
	}

	cutoff := time.Now().UTC().Add(-s.retention)
	pruned, err := s.logs.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("audit record pruning failed",
			slog.String("error", err.Error()))
	} else if pruned > 0 {
		s.logger.Info("audit records pruned",
			slog.Int64("pruned", pruned),
			slog.Time("cutoff", cutoff))
	}
}
