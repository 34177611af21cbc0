package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"hcpextract/internal/clean"
	"hcpextract/internal/config"
	"hcpextract/internal/logging"
	"hcpextract/internal/status"
	"hcpextract/internal/statuswriter"
)

// CleanOptions selects what RunClean removes.
type CleanOptions struct {
	Task    string
	Session string
	DryRun  bool
	Logger  *slog.Logger
}

// RunClean removes model outputs for a task and records the removed derived
// files as missing through a status writer.
func RunClean(ctx context.Context, cfg *config.Config, opts CleanOptions) (clean.Result, error) {
	if cfg == nil {
		return clean.Result{}, errors.New("pipeline: config is required")
	}
	cleanOpts := clean.Options{
		StudyDir: cfg.Paths.StudyDir,
		Task:     opts.Task,
		Session:  opts.Session,
		DryRun:   opts.DryRun,
		Logger:   opts.Logger,
	}
	if opts.DryRun {
		return clean.Run(ctx, cleanOpts, nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return clean.Result{}, err
	}

	store, err := status.Open(ctx, cfg.StorePath())
	if err != nil {
		return clean.Result{}, err
	}
	defer store.Close()

	queue := statuswriter.NewQueue(cfg.Writer.QueueCapacity)
	writer := statuswriter.New(queue, store, statuswriter.Options{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: time.Duration(cfg.Writer.FlushIntervalMs) * time.Millisecond,
		Lock:          flock.New(cfg.LockPath()),
		Logger:        opts.Logger,
	})
	writerDone := make(chan error, 1)
	go func() { writerDone <- writer.Run(ctx) }()

	res, cleanErr := clean.Run(ctx, cleanOpts, queue)
	closeErr := queue.Close(ctx)
	if writerErr := <-writerDone; writerErr != nil {
		logging.ErrorWithContext(logging.NewComponentLogger(opts.Logger, "pipeline"), "status writer failed", "writer_failed",
			logging.Error(writerErr),
		)
		return res, fmt.Errorf("status writer: %w", writerErr)
	}
	return res, errors.Join(cleanErr, closeErr)
}
