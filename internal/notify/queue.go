package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

// Queue decouples the request that earns a notification from its delivery.
type Queue interface {
	// Push never blocks on delivery.
	Push(ctx context.Context, job Job) error
	// Pop blocks until a job is available or ctx is done.
	Pop(ctx context.Context) (Job, error)
	Close() error
}

// MemoryQueue is a bounded in-process queue. Jobs do not survive a restart.
type MemoryQueue struct {
	mu     sync.RWMutex
	ch     chan Job
	closed *atomic.Bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{
		ch:     make(chan Job, size),
		closed: atomic.NewBool(false),
	}
}

func (q *MemoryQueue) Push(_ context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (Job, error) {
	select {
	case job, ok := <-q.ch:
		if !ok {
			return Job{}, ErrQueueClosed
		}
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.CAS(false, true) {
		close(q.ch)
	}
	return nil
}
