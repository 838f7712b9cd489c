// Package ingest buffers incoming centroid frames and drives the tracker
// over them one cycle at a time.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("frame queue closed")

// Frame is one sensor frame of object centroids.
type Frame struct {
	Seq          uint64 // Assigned by FrameQueue.Push, starting at 1
	Received     time.Time
	Observations []r3.Vec
	// Malformed counts points the decoder could not recover.
	Malformed int
}

// QueueStats is a point-in-time view of queue counters.
type QueueStats struct {
	Pushed  uint64
	Dropped uint64
	Depth   int
}

// FrameQueue is a bounded FIFO that drops its oldest frame when full.
// It is safe for concurrent producers and a single consumer.
type FrameQueue struct {
	mu      sync.Mutex
	buf     []Frame
	head    int
	size    int
	pushed  uint64
	dropped uint64
	closed  bool
	ready   chan struct{}
	space   chan struct{}
	done    chan struct{}
}

// NewFrameQueue returns a queue holding at most capacity frames.
// Capacities below one are raised to one.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{
		buf:   make([]Frame, capacity),
		ready: make(chan struct{}, 1),
		space: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int { return len(q.buf) }

// Push enqueues f, evicting the oldest frame if the queue is full.
// It returns the sequence number assigned to f and whether a frame was
// evicted. Pushing to a closed queue is a no-op that returns 0.
func (q *FrameQueue) Push(f Frame) (seq uint64, evicted bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, false
	}
	q.pushed++
	f.Seq = q.pushed
	if q.size == len(q.buf) {
		q.buf[q.head] = Frame{}
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
		evicted = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = f
	q.size++
	q.mu.Unlock()

	q.signal()
	return f.Seq, evicted
}

// PushWait enqueues f without evicting, blocking while the queue is full.
// It is meant for sources the process paces itself, such as file replay.
// It returns ErrQueueClosed if the queue is closed before f is accepted.
func (q *FrameQueue) PushWait(ctx context.Context, f Frame) (uint64, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return 0, ErrQueueClosed
		}
		if q.size < len(q.buf) {
			q.pushed++
			f.Seq = q.pushed
			q.buf[(q.head+q.size)%len(q.buf)] = f
			q.size++
			q.mu.Unlock()
			q.signal()
			return f.Seq, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-q.done:
		case <-q.space:
		}
	}
}

// Pop removes and returns the oldest frame, blocking until one is
// available, the queue is closed and empty, or ctx is done.
func (q *FrameQueue) Pop(ctx context.Context) (Frame, error) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			f := q.buf[q.head]
			q.buf[q.head] = Frame{}
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			more := q.size > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			select {
			case q.space <- struct{}{}:
			default:
			}
			return f, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Frame{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Close stops accepting frames. Frames already queued can still be popped.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
	q.signal()
}

// Stats returns the current counters.
func (q *FrameQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Pushed: q.pushed, Dropped: q.dropped, Depth: q.size}
}

func (q *FrameQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
