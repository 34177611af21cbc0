package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"hcpextract/internal/combine"
	"hcpextract/internal/config"
	"hcpextract/internal/logging"
	"hcpextract/internal/pathmeta"
	"hcpextract/internal/status"
)

// CombineOptions selects the records reduced into one output file.
type CombineOptions struct {
	Task string
	// DataKind defaults to the kind named by extract.stats_dir.
	DataKind string
	FileKind string
	// Output overrides the default <output_dir>/<task>_<kind>.parquet.
	Output string
	Logger *slog.Logger
}

// RunCombine gates on the status store and writes the consolidated table.
func RunCombine(ctx context.Context, cfg *config.Config, opts CombineOptions) (combine.Result, error) {
	if cfg == nil {
		return combine.Result{}, errors.New("pipeline: config is required")
	}
	if err := config.ValidateTask(opts.Task); err != nil {
		return combine.Result{}, err
	}
	dataKind := opts.DataKind
	if dataKind == "" {
		dataKind = pathmeta.DataKindFromStatsDir(cfg.Extract.StatsDir)
	}
	output := opts.Output
	if output == "" {
		output = cfg.CombineOutputPath(opts.Task, dataKind)
	}

	ctx = logging.WithRunID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, opts.Logger)

	store, err := status.Open(ctx, cfg.StorePath())
	if err != nil {
		return combine.Result{}, err
	}
	defer store.Close()

	return combine.Run(ctx, combine.Options{
		Store:      store,
		Filter:     status.Filter{Task: opts.Task, DataKind: dataKind, FileKind: opts.FileKind},
		Workers:    cfg.Combine.Workers,
		OutputPath: output,
		Logger:     logger,
	})
}
