// Package messaging carries lifecycle events and inbound commands between
// the engine, its workers, and external consumers.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/event"
)

// EventHandler consumes one published event.
type EventHandler func(ctx context.Context, evt event.Event) error

// Bus is an in-process event bus with synchronous fan-out. Subscriptions
// happen during startup; Publish may run concurrently afterwards.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[event.Type][]EventHandler
	catchAll    []EventHandler
}

// NewBus builds an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[event.Type][]EventHandler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType event.Type, handler EventHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler EventHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = append(b.catchAll, handler)
}

// Publish delivers the event to every matching subscriber. Delivery is
// synchronous and every handler runs even when an earlier one fails; the
// combined failure is returned so callers can surface it.
func (b *Bus) Publish(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt.Type == "" {
		return fmt.Errorf("event type is required")
	}

	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers[evt.Type])+len(b.catchAll))
	handlers = append(handlers, b.subscribers[evt.Type]...)
	handlers = append(handlers, b.catchAll...)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("deliver %s: %w", evt.Type, err))
		}
	}
	return errors.Join(errs...)
}
