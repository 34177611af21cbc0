package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"hcpextract/internal/aggregate"
	"hcpextract/internal/config"
	"hcpextract/internal/extract"
	"hcpextract/internal/logging"
	"hcpextract/internal/pathmeta"
	"hcpextract/internal/status"
	"hcpextract/internal/statuswriter"
	"hcpextract/internal/worklist"
)

// ExtractOptions selects what one extraction run processes.
type ExtractOptions struct {
	Task string
	// Lists overrides the list files discovered under cfg.Paths.ListDir.
	Lists []string
	// ArrayJob restricts the run to the WorkItem at the scheduler index.
	ArrayJob bool
	Force    bool
	// Refresh re-stats every tracked path before extraction. It is also
	// enabled by extract.refresh_before_run.
	Refresh   bool
	Converter extract.Converter
	Logger    *slog.Logger
}

// ExtractSummary reports the outcome of RunExtraction.
type ExtractSummary struct {
	RunID        string
	WorkItems    int
	Partitions   int
	Extract      extract.Summary
	Writer       statuswriter.Stats
	Refreshed    status.BatchResult
	Completeness *aggregate.Report
	Elapsed      time.Duration
}

// RunExtraction loads the WorkItem lists for a task, fans them out across
// the worker pool and funnels every produced path through one status writer.
// A writer failure cancels the workers and is returned.
func RunExtraction(ctx context.Context, cfg *config.Config, opts ExtractOptions) (ExtractSummary, error) {
	var summary ExtractSummary
	if cfg == nil {
		return summary, errors.New("pipeline: config is required")
	}
	if err := config.ValidateTask(opts.Task); err != nil {
		return summary, err
	}

	items, lists, err := loadItems(cfg, opts.Task, opts.Lists)
	if err != nil {
		return summary, err
	}
	summary.WorkItems = len(items)

	partitions, err := planPartitions(cfg, items, opts.ArrayJob)
	if err != nil {
		return summary, err
	}
	summary.Partitions = len(partitions)

	if err := cfg.EnsureDirectories(); err != nil {
		return summary, err
	}

	summary.RunID = uuid.NewString()
	ctx = logging.WithRunID(ctx, summary.RunID)
	relay := logging.NewRelay(sinkHandler(opts.Logger), cfg.Logging.RelayCapacity)
	defer relay.Close()
	logger := logging.WithContext(ctx, relay.Logger())
	logger = logging.NewComponentLogger(logger, "pipeline")

	store, err := status.Open(ctx, cfg.StorePath())
	if err != nil {
		return summary, err
	}
	defer store.Close()

	started := time.Now()
	logger.Info("extraction started",
		logging.String(logging.FieldEventType, "extraction_started"),
		logging.String(logging.FieldTask, opts.Task),
		logging.Int("lists", len(lists)),
		logging.Int("work_items", len(items)),
		logging.Int("partitions", len(partitions)),
		logging.Bool("array_job", opts.ArrayJob),
	)

	if opts.Refresh || cfg.Extract.RefreshBeforeRun {
		res, err := RefreshLocked(ctx, store, cfg.LockPath(), logger)
		if err != nil {
			return summary, err
		}
		summary.Refreshed = res
	}

	converter := opts.Converter
	if converter == nil {
		converter = extract.CommandConverter{
			Binary:  cfg.Extract.ConverterBinary,
			Timeout: time.Duration(cfg.Extract.ConvertTimeoutSeconds) * time.Second,
		}
	}

	queue := statuswriter.NewQueue(cfg.Writer.QueueCapacity)
	writer := statuswriter.New(queue, store, statuswriter.Options{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: time.Duration(cfg.Writer.FlushIntervalMs) * time.Millisecond,
		Lock:          flock.New(cfg.LockPath()),
		Logger:        logger,
	})
	pool := extract.NewPool(store, queue, converter, extract.Options{
		Task:     opts.Task,
		Layout:   layoutFor(cfg),
		StatsDir: cfg.Extract.StatsDir,
		Force:    opts.Force,
		Logger:   logger,
	})

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writerDone := make(chan error, 1)
	go func() {
		err := writer.Run(ctx)
		if err != nil {
			cancel()
		}
		writerDone <- err
	}()

	poolSummary, poolErr := pool.Run(workCtx, partitions)
	closeErr := queue.Close(ctx)
	writerErr := <-writerDone

	summary.Extract = poolSummary
	summary.Writer = writer.Stats()
	summary.Elapsed = time.Since(started)

	if writerErr != nil {
		logging.ErrorWithContext(logger, "status writer failed", "writer_failed",
			logging.Error(writerErr),
			logging.String(logging.FieldErrorHint, "check the status store location and free space, then rerun"),
		)
		return summary, fmt.Errorf("status writer: %w", writerErr)
	}
	if err := errors.Join(poolErr, closeErr); err != nil {
		return summary, err
	}

	if !opts.ArrayJob {
		report, err := aggregate.CheckCompleteness(ctx, store, status.Filter{
			Task:     opts.Task,
			DataKind: pathmeta.DataKindFromStatsDir(cfg.Extract.StatsDir),
		}, len(items), logger)
		if err != nil {
			return summary, err
		}
		summary.Completeness = &report
	}

	logger.Info("extraction finished",
		logging.String(logging.FieldEventType, "extraction_finished"),
		logging.String(logging.FieldTask, opts.Task),
		logging.Int("converted", poolSummary.Converted),
		logging.Int("skipped", poolSummary.Skipped),
		logging.Int("failed", poolSummary.Failed),
		logging.Int("batches", summary.Writer.Batches),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func loadItems(cfg *config.Config, task string, lists []string) ([]worklist.Item, []string, error) {
	if len(lists) == 0 {
		found, err := cfg.ListFiles(task)
		if err != nil {
			return nil, nil, err
		}
		lists = found
	}
	if len(lists) == 0 {
		return nil, nil, fmt.Errorf("no work item lists for %s under %s", task, cfg.Paths.ListDir)
	}
	items, err := worklist.Load(lists...)
	if err != nil {
		return nil, nil, err
	}
	return items, lists, nil
}

func planPartitions(cfg *config.Config, items []worklist.Item, arrayJob bool) ([][]worklist.Item, error) {
	if !arrayJob {
		return worklist.Partition(items, cfg.Extract.Workers), nil
	}
	idx, err := worklist.IndexFromEnv(cfg.Scheduler.IndexEnv)
	if err != nil {
		return nil, err
	}
	selected, err := worklist.Select(items, idx)
	if err != nil {
		return nil, err
	}
	return [][]worklist.Item{selected}, nil
}

func layoutFor(cfg *config.Config) pathmeta.Layout {
	return pathmeta.Layout{
		StudyDir:   cfg.Paths.StudyDir,
		FeatSuffix: cfg.Extract.FeatSuffix,
		SourceExt:  cfg.Extract.SourceExt,
	}
}

func sinkHandler(logger *slog.Logger) slog.Handler {
	if logger == nil {
		return logging.NoopHandler{}
	}
	return logger.Handler()
}
