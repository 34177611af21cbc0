package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"hcpextract/internal/logging"
	"hcpextract/internal/status"
)

// lockRetryDelay is how often a blocked refresh retries the commit lock.
const lockRetryDelay = 50 * time.Millisecond

// refreshChunk bounds the paths re-observed per transaction.
const refreshChunk = 500

// Refresher is the store surface Refresh needs.
type Refresher interface {
	Paths(ctx context.Context) ([]string, error)
	UpsertBatch(ctx context.Context, paths []string) (status.BatchResult, error)
}

// Refresh re-stats every tracked path and rewrites its record. It must not
// run while a status writer is active on the same store.
func Refresh(ctx context.Context, store Refresher, logger *slog.Logger) (status.BatchResult, error) {
	logger = logging.NewComponentLogger(logger, "refresh")
	paths, err := store.Paths(ctx)
	if err != nil {
		return status.BatchResult{}, fmt.Errorf("list tracked paths: %w", err)
	}

	var total status.BatchResult
	for start := 0; start < len(paths); start += refreshChunk {
		end := min(start+refreshChunk, len(paths))
		res, err := store.UpsertBatch(ctx, paths[start:end])
		if err != nil {
			return total, fmt.Errorf("refresh batch: %w", err)
		}
		total.Built += res.Built
		total.Missing += res.Missing
	}
	logger.Info("status refreshed",
		logging.String(logging.FieldEventType, "status_refreshed"),
		logging.Int("built", total.Built),
		logging.Int("missing", total.Missing),
	)
	return total, nil
}

// RefreshLocked runs Refresh while holding the commit lock at lockPath, so
// writers of other processes cannot commit in between. It waits for the
// lock until ctx is done.
func RefreshLocked(ctx context.Context, store Refresher, lockPath string, logger *slog.Logger) (status.BatchResult, error) {
	lock := flock.New(lockPath)
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return status.BatchResult{}, fmt.Errorf("acquire status lock: %w", err)
	}
	defer lock.Unlock()
	return Refresh(ctx, store, logger)
}
