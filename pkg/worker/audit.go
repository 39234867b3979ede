package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/repository"
)

// AuditCleanupWorker deletes audit rows older than the retention window.
type AuditCleanupWorker struct {
	repo          repository.AuditRepository
	retentionDays int
	interval      time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

func NewAuditCleanupWorker(repo repository.AuditRepository, retentionDays int, interval time.Duration, logger zerolog.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With().Str("worker", "audit_cleanup").Logger(),
		now:           time.Now,
	}
}

// Start runs a cleanup immediately and then once per interval until ctx is
// cancelled.
func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.cleanup(ctx); err != nil {
			w.logger.Error().Err(err).Msg("audit cleanup failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *AuditCleanupWorker) cleanup(ctx context.Context) error {
	if w.retentionDays <= 0 {
		return nil
	}
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	w.logger.Info().Int64("deleted", rows).Time("cutoff", cutoff).Msg("cleaned up audit logs")
	return nil
}
