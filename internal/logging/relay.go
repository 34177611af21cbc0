package logging

import (
	"context"
	"log/slog"
	"sync"
)

// Relay forwards records from many goroutines to a single sink handler.
//
// Producers log through Handler(); each record is cloned onto a bounded
// channel and one drain goroutine hands it to the sink in arrival order, so
// the sink never sees concurrent Handle calls from workers. Once Close
// returns, the relay handles records inline against the sink.
type Relay struct {
	sink    slog.Handler
	entries chan relayEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu    sync.Mutex
	firstErr error
}

type relayEntry struct {
	handler slog.Handler
	record  slog.Record
}

// NewRelay starts a relay draining into sink. capacity bounds the number of
// records buffered before producers block.
func NewRelay(sink slog.Handler, capacity int) *Relay {
	if sink == nil {
		sink = NoopHandler{}
	}
	if capacity < 0 {
		capacity = 0
	}
	r := &Relay{
		sink:    sink,
		entries: make(chan relayEntry, capacity),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// Handler returns the producer-side handler.
func (r *Relay) Handler() slog.Handler {
	return &relayHandler{relay: r, target: r.sink}
}

// Logger is a convenience wrapper around Handler.
func (r *Relay) Logger() *slog.Logger {
	return slog.New(r.Handler())
}

// Close stops accepting queued records, waits for the backlog to reach the
// sink, and returns the first sink error observed by the drain goroutine.
func (r *Relay) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()
	<-r.done

	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.firstErr
}

func (r *Relay) drain() {
	defer close(r.done)
	for entry := range r.entries {
		if err := entry.handler.Handle(context.Background(), entry.record); err != nil {
			r.errMu.Lock()
			if r.firstErr == nil {
				r.firstErr = err
			}
			r.errMu.Unlock()
		}
	}
}

func (r *Relay) enqueue(ctx context.Context, handler slog.Handler, record slog.Record) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return handler.Handle(ctx, record)
	}
	r.entries <- relayEntry{handler: handler, record: record.Clone()}
	return nil
}

type relayHandler struct {
	relay  *Relay
	target slog.Handler
}

func (h *relayHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.target.Enabled(ctx, level)
}

func (h *relayHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.relay.enqueue(ctx, h.target, record)
}

func (h *relayHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &relayHandler{relay: h.relay, target: h.target.WithAttrs(attrs)}
}

func (h *relayHandler) WithGroup(name string) slog.Handler {
	return &relayHandler{relay: h.relay, target: h.target.WithGroup(name)}
}
