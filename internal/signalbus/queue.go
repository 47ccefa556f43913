package signalbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coachpo/spreadscan/internal/schema"
)

// ErrClosed reports an operation against a closed queue.
var ErrClosed = errors.New("signalbus: queue closed")

// Queue is the in-memory candidate queue. One scanner goroutine enqueues,
// one depth-checker goroutine dequeues. The buffer channel is never closed;
// shutdown is signalled separately so queued candidates can still drain.
type Queue struct {
	cfg    Config
	logger zerolog.Logger

	ch        chan schema.Candidate
	closed    chan struct{}
	closeOnce sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New constructs a queue with the provided configuration.
func New(cfg Config, logger zerolog.Logger) *Queue {
	cfg = cfg.normalize()
	q := new(Queue)
	q.cfg = cfg
	q.logger = logger
	q.ch = make(chan schema.Candidate, cfg.Capacity)
	q.closed = make(chan struct{})
	return q
}

// Enqueue hands a candidate to the depth checker. Under PolicyBlock a full
// queue applies backpressure to the scanner; under PolicyDropOldest the
// oldest queued candidate is evicted and counted.
func (q *Queue) Enqueue(ctx context.Context, candidate schema.Candidate) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Closed wins over a free buffer slot.
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	if q.cfg.Policy == PolicyDropOldest {
		return q.enqueueDropOldest(ctx, candidate)
	}
	select {
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("enqueue context: %w", ctx.Err())
	case q.ch <- candidate:
		q.published.Add(1)
		return nil
	}
}

func (q *Queue) enqueueDropOldest(ctx context.Context, candidate schema.Candidate) error {
	for {
		select {
		case <-q.closed:
			return ErrClosed
		case <-ctx.Done():
			return fmt.Errorf("enqueue context: %w", ctx.Err())
		case q.ch <- candidate:
			q.published.Add(1)
			return nil
		default:
		}
		select {
		case evicted := <-q.ch:
			q.dropped.Add(1)
			q.logger.Warn().
				Str("pair", string(evicted.Pair)).
				Str("direction", evicted.Direction()).
				Msg("queue full, dropping oldest candidate")
		default:
		}
	}
}

// Dequeue blocks until a candidate is available. After Close it drains the
// remaining candidates and then reports ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (schema.Candidate, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case candidate := <-q.ch:
		return candidate, nil
	default:
	}
	select {
	case candidate := <-q.ch:
		return candidate, nil
	case <-ctx.Done():
		return schema.Candidate{}, fmt.Errorf("dequeue context: %w", ctx.Err())
	case <-q.closed:
		select {
		case candidate := <-q.ch:
			return candidate, nil
		default:
			return schema.Candidate{}, ErrClosed
		}
	}
}

// Close stops the queue. Pending candidates stay dequeueable.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Depth returns the number of queued candidates.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Stats returns the lifetime published and dropped counts.
func (q *Queue) Stats() (published, dropped uint64) {
	return q.published.Load(), q.dropped.Load()
}
