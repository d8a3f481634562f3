package app

import (
	"context"
	"errors"
	"time"

	"github.com/garyellow/lessonbot-go/internal/config"
	"github.com/garyellow/lessonbot-go/internal/snapshot"
)

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
// The limiter evicts idle buckets on its own ticker.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.dedupCleanup(ctx)
	})
	if a.snapshots != nil {
		a.wg.Go(func() {
			a.snapshotBackup(ctx)
		})
	}
}

// dedupCleanup forgets old webhook message ids once at startup, then every
// config.DedupCleanupInterval.
func (a *Application) dedupCleanup(ctx context.Context) {
	a.logger.Debug("Dedup cleanup job started")
	defer a.logger.Debug("Dedup cleanup job stopped")

	a.runDedupCleanup(ctx)

	ticker := time.NewTicker(config.DedupCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runDedupCleanup(ctx)
		}
	}
}

func (a *Application) runDedupCleanup(ctx context.Context) {
	start := time.Now()

	deleted, err := a.db.CleanupProcessed(ctx, a.cfg.Bot.DedupRetention)
	if err != nil {
		a.logger.WithError(err).Error("Failed to clean up processed message ids")
		return
	}

	duration := time.Since(start)
	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", duration.Milliseconds()).
		Info("Dedup cleanup completed")
	a.metrics.RecordJob("dedup_cleanup", duration.Seconds())
}

// snapshotBackup uploads a database snapshot every SNAPSHOT_INTERVAL.
func (a *Application) snapshotBackup(ctx context.Context) {
	a.logger.Debug("Snapshot job started")
	defer a.logger.Debug("Snapshot job stopped")

	ticker := time.NewTicker(a.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runSnapshot(ctx)
		}
	}
}

func (a *Application) runSnapshot(ctx context.Context) {
	start := time.Now()

	snapCtx, cancel := context.WithTimeout(ctx, config.SnapshotUpload)
	defer cancel()

	etag, err := a.snapshots.Backup(snapCtx, a.db)
	switch {
	case errors.Is(err, snapshot.ErrLockHeld):
		a.logger.Info("Snapshot skipped; another instance holds the lock")
		return
	case err != nil:
		a.logger.WithError(err).Error("Database snapshot failed")
		return
	}

	duration := time.Since(start)
	a.logger.WithField("etag", etag).
		WithField("duration_ms", duration.Milliseconds()).
		Info("Database snapshot uploaded")
	a.metrics.RecordJob("snapshot", duration.Seconds())
}
