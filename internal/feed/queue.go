package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

// DefaultQueueCapacity is the number of pending pings kept before the oldest
// is dropped.
const DefaultQueueCapacity = 256

// ErrQueueClosed is returned when pushing to a closed queue.
var ErrQueueClosed = errors.New("queue closed")

// WithLogger sets the logger for the queue and its pump.
func WithLogger(logger *slog.Logger) func(*Queue) {
	return func(q *Queue) {
		q.logger = logger
	}
}

// Queue hands pings from producer goroutines to the display goroutine. It
// keeps arrival order and, when full, drops the oldest pending ping.
type Queue struct {
	mu       sync.Mutex
	pending  []*ping.Ping
	capacity int
	dropped  uint64
	closed   bool

	ready chan struct{} // signalled when pings are pending
	done  chan struct{} // closed by Close

	logger *slog.Logger
}

// NewQueue creates a queue holding up to capacity pending pings.
func NewQueue(capacity int, options ...func(*Queue)) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid queue capacity: %d", capacity)
	}

	q := Queue{
		pending:  make([]*ping.Ping, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&q)
	}

	return &q, nil
}

// Push appends p. It is safe for concurrent use.
func (q *Queue) Push(p *ping.Ping) error {
	if p == nil {
		return nil
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if len(q.pending) == q.capacity {
		clear(q.pending[:1])
		q.pending = append(q.pending[:0], q.pending[1:]...)
		q.dropped++
	}
	q.pending = append(q.pending, p)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Drain removes and returns every pending ping in arrival order.
func (q *Queue) Drain() []*ping.Ping {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	out := make([]*ping.Ping, len(q.pending))
	copy(out, q.pending)
	clear(q.pending)
	q.pending = q.pending[:0]
	return out
}

// Len returns the number of pending pings.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns how many pings were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting pings. Pending pings can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Ready is signalled after a push.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Done is closed once the queue is closed.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Pump delivers pings from q to handle on the calling goroutine, one at a
// time and in arrival order, until q is closed and drained or ctx is done.
// Errors returned by handle are logged and do not stop the pump.
func Pump(ctx context.Context, q *Queue, handle func(*ping.Ping) error) error {
	deliver := func() int {
		pings := q.Drain()
		for _, p := range pings {
			if err := handle(p); err != nil {
				q.logger.Warn("ping not displayed",
					slog.Time("timestamp", p.Timestamp()),
					slog.String("error", err.Error()))
			}
		}
		return len(pings)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-q.ready:
			deliver()

		case <-q.done:
			for deliver() > 0 {
			}
			if dropped := q.Dropped(); dropped > 0 {
				q.logger.Warn("pings dropped by a full queue", slog.Uint64("count", dropped))
			}
			return nil
		}
	}
}
