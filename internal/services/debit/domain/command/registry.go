package command

import (
	"context"
	"fmt"
	"sort"
)

// Handler processes one command type decoded from a raw queue message.
type Handler interface {
	// Tag returns the command type this handler accepts.
	Tag() string
	// Handle decodes the raw message and executes the command.
	Handle(ctx context.Context, raw []byte) error
}

// Registry maps command tags to handlers. It is populated once at startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry from the given handlers. Registering two
// handlers for the same tag is a startup error.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	registry := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, handler := range handlers {
		if handler == nil {
			return nil, fmt.Errorf("handler is required")
		}
		tag := handler.Tag()
		if tag == "" {
			return nil, fmt.Errorf("handler tag is required")
		}
		if _, exists := registry.handlers[tag]; exists {
			return nil, fmt.Errorf("duplicate handler for command type %s", tag)
		}
		registry.handlers[tag] = handler
	}
	return registry, nil
}

// Handler returns the handler registered for the tag.
func (r *Registry) Handler(tag string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	handler, ok := r.handlers[tag]
	return handler, ok
}

// Tags returns the registered command tags in sorted order.
func (r *Registry) Tags() []string {
	if r == nil {
		return nil
	}
	tags := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
