package statuswriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hcpextract/internal/logging"
	"hcpextract/internal/status"
)

// State is the writer's position in its batching cycle.
type State int32

const (
	StateIdle State = iota
	StateBatching
	StateCommitting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBatching:
		return "batching"
	case StateCommitting:
		return "committing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Committer persists one batch of paths atomically.
type Committer interface {
	UpsertBatch(ctx context.Context, paths []string) (status.BatchResult, error)
}

// Locker is the cross-process commit lock; *flock.Flock satisfies it.
type Locker interface {
	TryLockContext(ctx context.Context, retryDelay time.Duration) (bool, error)
	Unlock() error
}

// CommitError carries the batch that failed to commit so callers can report
// or replay it.
type CommitError struct {
	Paths []string
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit batch of %d paths: %v", len(e.Paths), e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Options configures a Writer.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	Lock          Locker
	LockRetry     time.Duration
	Logger        *slog.Logger
}

// Stats reports cumulative writer activity.
type Stats struct {
	Batches int
	Paths   int
	Built   int
	Missing int
}

// Writer is the only component that mutates the status store.
type Writer struct {
	queue     *Queue
	committer Committer
	opts      Options
	logger    *slog.Logger

	state atomic.Int32

	mu    sync.Mutex
	stats Stats
}

// New builds a writer draining queue into committer.
func New(queue *Queue, committer Committer, opts Options) *Writer {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.LockRetry <= 0 {
		opts.LockRetry = 50 * time.Millisecond
	}
	return &Writer{
		queue:     queue,
		committer: committer,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "status-writer"),
	}
}

// State returns the current state.
func (w *Writer) State() State {
	return State(w.state.Load())
}

// Stats returns a snapshot of committed work.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run consumes the queue until the stop sentinel arrives, ctx is cancelled,
// or a commit fails. A batch is committed when it reaches BatchSize or when
// FlushInterval elapses after its first event. Commit failures are returned
// as *CommitError and stop the writer.
func (w *Writer) Run(ctx context.Context) (err error) {
	defer func() {
		w.state.Store(int32(StateStopped))
		w.queue.markStopped()
	}()
	w.state.Store(int32(StateIdle))
	w.logger.Debug("status writer started",
		logging.Int("batch_size", w.opts.BatchSize),
		logging.Duration("flush_interval", w.opts.FlushInterval),
	)

	timer := time.NewTimer(w.opts.FlushInterval)
	timer.Stop()
	defer timer.Stop()

	var pending []string
	flush := func(ctx context.Context, reason string) error {
		if len(pending) == 0 {
			return nil
		}
		timer.Stop()
		if err := w.commit(ctx, pending, reason); err != nil {
			return err
		}
		pending = nil
		w.state.Store(int32(StateIdle))
		return nil
	}

	for {
		var deadline <-chan time.Time
		if len(pending) > 0 {
			deadline = timer.C
		}

		select {
		case ev := <-w.queue.events:
			if ev.stop {
				if err := flush(ctx, "stop"); err != nil {
					return err
				}
				s := w.Stats()
				w.logger.Info("status writer stopped",
					logging.String(logging.FieldEventType, "writer_stopped"),
					logging.Int("batches", s.Batches),
					logging.Int("paths", s.Paths),
				)
				return nil
			}
			pending = append(pending, ev.path)
			if len(pending) == 1 {
				w.state.Store(int32(StateBatching))
				timer.Reset(w.opts.FlushInterval)
			}
			if len(pending) >= w.opts.BatchSize {
				if err := flush(ctx, "size"); err != nil {
					return err
				}
			}
		case <-deadline:
			if err := flush(ctx, "timeout"); err != nil {
				return err
			}
		case <-ctx.Done():
			if err := flush(context.WithoutCancel(ctx), "cancel"); err != nil {
				return errors.Join(ctx.Err(), err)
			}
			return ctx.Err()
		}
	}
}

func (w *Writer) commit(ctx context.Context, paths []string, reason string) error {
	w.state.Store(int32(StateCommitting))
	batch := append([]string(nil), paths...)

	if w.opts.Lock != nil {
		locked, err := w.opts.Lock.TryLockContext(ctx, w.opts.LockRetry)
		if err != nil {
			return w.failed(batch, fmt.Errorf("acquire commit lock: %w", err))
		}
		if !locked {
			return w.failed(batch, errors.New("acquire commit lock: not acquired"))
		}
		defer func() {
			if err := w.opts.Lock.Unlock(); err != nil {
				w.logger.Warn("release commit lock failed", logging.Error(err))
			}
		}()
	}

	started := time.Now()
	res, err := w.committer.UpsertBatch(ctx, batch)
	if err != nil {
		return w.failed(batch, err)
	}

	w.mu.Lock()
	w.stats.Batches++
	w.stats.Paths += len(batch)
	w.stats.Built += res.Built
	w.stats.Missing += res.Missing
	w.mu.Unlock()

	w.logger.Debug("status batch committed",
		logging.String(logging.FieldEventType, "batch_committed"),
		logging.String("reason", reason),
		logging.Int("paths", len(batch)),
		logging.Int("built", res.Built),
		logging.Int("missing", res.Missing),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (w *Writer) failed(batch []string, err error) error {
	commitErr := &CommitError{Paths: batch, Err: err}
	logging.ErrorWithContext(w.logger, "status batch commit failed", "batch_commit_failed",
		logging.Int("paths", len(batch)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check disk space and the status database lock, then rerun extract"),
	)
	return commitErr
}
