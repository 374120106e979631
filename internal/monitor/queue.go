package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HerbHall/netpad/pkg/models"
)

// ErrQueueClosed is returned by Push and Pop after Close.
var ErrQueueClosed = errors.New("poller queue closed")

// Task is one device handed from the planner to the poller.
type Task struct {
	Device     models.Device
	EnqueuedAt time.Time
}

// Queue is the bounded FIFO between the planner and the poller workers.
// Push blocks while the queue is full; tasks are never dropped.
type Queue struct {
	ch        chan Task
	closed    chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most capacity tasks.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	queueCapacity.Set(float64(capacity))
	return &Queue{
		ch:     make(chan Task, capacity),
		closed: make(chan struct{}),
	}
}

// Push appends a task, blocking until a slot is free, ctx is done, or the
// queue is closed.
func (q *Queue) Push(ctx context.Context, t Task) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- t:
		queueDepth.Inc()
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush appends a task only if a slot is free right now.
func (q *Queue) TryPush(t Task) bool {
	select {
	case <-q.closed:
		return false
	default:
	}
	select {
	case q.ch <- t:
		queueDepth.Inc()
		return true
	default:
		return false
	}
}

// Pop removes the oldest task, blocking until one is available, ctx is
// done, or the queue is closed.
func (q *Queue) Pop(ctx context.Context) (Task, error) {
	// Shutdown wins over pending tasks; leftovers are collected by Drain.
	select {
	case <-q.closed:
		return Task{}, ErrQueueClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	select {
	case t := <-q.ch:
		queueDepth.Dec()
		return t, nil
	case <-q.closed:
		return Task{}, ErrQueueClosed
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// Close wakes every blocked Push and Pop. Tasks still queued stay counted
// by Len until drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Drain removes and returns every queued task without blocking.
func (q *Queue) Drain() []Task {
	var out []Task
	for {
		select {
		case t := <-q.ch:
			queueDepth.Dec()
			out = append(out, t)
		default:
			return out
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
