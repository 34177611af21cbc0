package statuswriter

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrWriterStopped is returned by Publish once the writer has exited.
	ErrWriterStopped = errors.New("status writer stopped")
	// ErrQueueClosed is returned by Publish after Close.
	ErrQueueClosed = errors.New("status queue closed")
)

type event struct {
	path string
	stop bool
}

// Queue carries "file produced" notifications from workers to the single
// writer. It is created once per run and handed to every producer.
type Queue struct {
	events  chan event
	stopped chan struct{}

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewQueue creates a queue buffering up to capacity events before producers
// block.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		events:  make(chan event, capacity),
		stopped: make(chan struct{}),
	}
}

// Publish enqueues path for the writer, blocking while the queue is full.
func (q *Queue) Publish(ctx context.Context, path string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return q.send(ctx, event{path: path})
}

// Close enqueues the stop sentinel. Events published before Close are
// committed before the writer stops. Close is idempotent.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	err := q.send(ctx, event{stop: true})
	if errors.Is(err, ErrWriterStopped) {
		return nil
	}
	return err
}

// Stopped is closed when the writer has exited.
func (q *Queue) Stopped() <-chan struct{} {
	return q.stopped
}

func (q *Queue) send(ctx context.Context, ev event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-q.stopped:
		return ErrWriterStopped
	default:
	}
	select {
	case q.events <- ev:
		return nil
	case <-q.stopped:
		return ErrWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) markStopped() {
	q.stopOnce.Do(func() { close(q.stopped) })
}
