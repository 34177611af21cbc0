package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hcpextract/internal/logging"
	"hcpextract/internal/pathmeta"
	"hcpextract/internal/status"
	"hcpextract/internal/worklist"
)

// StatusReader is the read-only view of the status store workers use.
type StatusReader interface {
	GetStatus(ctx context.Context, path string) (status.Status, bool, error)
}

// Publisher receives produced paths; the status writer queue satisfies it.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

// Options configures a Pool.
type Options struct {
	Task     string
	Layout   pathmeta.Layout
	StatsDir string
	// Force converts every candidate regardless of recorded status.
	Force  bool
	Logger *slog.Logger
}

// Summary counts what a run did.
type Summary struct {
	Items        int
	SkippedItems int
	MissingDirs  int
	Candidates   int
	Converted    int
	Skipped      int
	Failed       int
}

func (s *Summary) add(o Summary) {
	s.Items += o.Items
	s.SkippedItems += o.SkippedItems
	s.MissingDirs += o.MissingDirs
	s.Candidates += o.Candidates
	s.Converted += o.Converted
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// Pool fans WorkItem partitions out to one worker goroutine each.
type Pool struct {
	store     StatusReader
	queue     Publisher
	converter Converter
	opts      Options
	logger    *slog.Logger
	candidate *regexp.Regexp
}

// NewPool builds a pool. Workers read status from store, convert with
// converter and report produced paths to queue.
func NewPool(store StatusReader, queue Publisher, converter Converter, opts Options) *Pool {
	ext := opts.Layout.SourceExt
	if ext == "" {
		ext = "ptseries.nii"
		opts.Layout.SourceExt = ext
	}
	return &Pool{
		store:     store,
		queue:     queue,
		converter: converter,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "extract"),
		candidate: regexp.MustCompile(`^(?:var)?cope[0-9]{1,2}\.` + regexp.QuoteMeta(ext) + `$`),
	}
}

// Run processes every partition concurrently. Status lookup and conversion
// failures of a candidate, and malformed WorkItems, are logged and counted
// without affecting other workers; only queue failures and cancellation stop
// the run.
func (p *Pool) Run(ctx context.Context, partitions [][]worklist.Item) (Summary, error) {
	var (
		mu    sync.Mutex
		total Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	for idx, part := range partitions {
		g.Go(func() error {
			sum, err := p.runPartition(gctx, idx, part)
			mu.Lock()
			total.add(sum)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return total, err
}

func (p *Pool) runPartition(ctx context.Context, idx int, items []worklist.Item) (Summary, error) {
	logger := p.logger.With(logging.Int(logging.FieldWorker, idx), logging.String(logging.FieldTask, p.opts.Task))
	started := time.Now()
	logger.Debug("worker started", logging.Int("items", len(items)))

	var sum Summary
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Items++
		if err := p.processItem(ctx, logger.With(logging.String(logging.FieldPID, item.PID)), item, &sum); err != nil {
			return sum, err
		}
	}

	logger.Info("worker finished",
		logging.String(logging.FieldEventType, "worker_finished"),
		logging.Int("items", sum.Items),
		logging.Int("converted", sum.Converted),
		logging.Int("skipped", sum.Skipped),
		logging.Int("failed", sum.Failed),
		logging.Duration("elapsed", time.Since(started)),
	)
	return sum, nil
}

func (p *Pool) processItem(ctx context.Context, logger *slog.Logger, item worklist.Item, sum *Summary) error {
	directions, err := item.Directions()
	if err != nil {
		sum.SkippedItems++
		logging.WarnWithContext(logger, "work item skipped", "work_item_skipped",
			logging.Error(err),
			logging.String("source", fmt.Sprintf("%s:%d", item.Source, item.Line)),
			logging.String(logging.FieldImpact, "no outputs produced for this session"),
			logging.String(logging.FieldErrorHint, "labels must end in _AP or _PA"),
		)
		return nil
	}

	for _, dir := range directions {
		srcDir := p.opts.Layout.SourceDir(item.PID, p.opts.Task, dir.Tag, p.opts.StatsDir)
		candidates, err := p.listCandidates(srcDir)
		if err != nil {
			sum.MissingDirs++
			logging.WarnWithContext(logger, "source directory unavailable", "source_dir_missing",
				logging.String("dir", srcDir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "direction skipped"),
				logging.String(logging.FieldErrorHint, "confirm the first-level model finished for this session"),
			)
			continue
		}
		for _, src := range candidates {
			sum.Candidates++
			if err := p.processCandidate(ctx, logger, src, sum); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pool) listCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !p.candidate.MatchString(entry.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	return out, nil
}

func (p *Pool) processCandidate(ctx context.Context, logger *slog.Logger, src string, sum *Summary) error {
	dst := pathmeta.DerivedPath(src)
	if !p.opts.Force {
		st, ok, err := p.store.GetStatus(ctx, dst)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			sum.Failed++
			logging.ErrorWithContext(logger, "status lookup failed", "status_read_failed",
				logging.String("output", dst),
				logging.Error(err),
				logging.String(logging.FieldImpact, "candidate left unconverted"),
				logging.String(logging.FieldErrorHint, "rerun extract once the status store is reachable"),
			)
			return nil
		}
		if ok && st == status.StatusBuilt {
			sum.Skipped++
			return nil
		}
	}

	if err := p.converter.Convert(ctx, src, dst); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		sum.Failed++
		logging.ErrorWithContext(logger, "conversion failed", "conversion_failed",
			logging.String("source", src),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rerun extract to retry; the output stays unbuilt"),
		)
		return nil
	}
	sum.Converted++
	logger.Debug("converted", logging.String("output", dst))

	if err := p.queue.Publish(ctx, dst); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	return nil
}
