package messaging

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed reports that the command queue accepts no more messages.
var ErrQueueClosed = errors.New("command queue is closed")

// Queue is a bounded in-memory command queue. Producers block when the
// queue is full; consumers drain remaining messages after Close.
type Queue struct {
	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewQueue builds a queue holding up to size pending messages.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		messages: make(chan []byte, size),
		done:     make(chan struct{}),
	}
}

// Enqueue adds a raw command message, blocking while the queue is full.
func (q *Queue) Enqueue(ctx context.Context, raw []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.messages <- raw:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest message, blocking until one arrives. After
// Close it keeps returning buffered messages until the queue drains, then
// reports ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-q.messages:
		return raw, nil
	default:
	}
	select {
	case raw := <-q.messages:
		return raw, nil
	case <-q.done:
		select {
		case raw := <-q.messages:
			return raw, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the queue. Pending messages remain consumable.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
