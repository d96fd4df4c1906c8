package command

import (
	"context"
	"encoding/json"
	"log"
	"strings"
)

// Result reports how a raw message was routed.
type Result struct {
	// Tag is the resolved command type, or TagUnknown when none matched.
	Tag string
	// Dropped is true when the message matched no registered handler and
	// was discarded without error.
	Dropped bool
}

// Dispatcher resolves the command type of a raw message and invokes the
// matching handler. Type resolution prefers the structured command_type
// envelope field; messages without one fall back to a substring scan over
// the registered tags.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher builds a dispatcher over the registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch routes one raw message. Unrecognized messages are logged and
// dropped; they produce no error so the queue consumer can acknowledge
// them. Handler failures are returned to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (Result, error) {
	tag := d.resolveTag(raw)
	if tag == TagUnknown {
		log.Printf("dispatch command dropped tag=%s size=%d", TagUnknown, len(raw))
		return Result{Tag: TagUnknown, Dropped: true}, nil
	}

	handler, _ := d.registry.Handler(tag)
	if err := handler.Handle(ctx, raw); err != nil {
		return Result{Tag: tag}, err
	}
	return Result{Tag: tag}, nil
}

func (d *Dispatcher) resolveTag(raw []byte) string {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.CommandType != "" {
		if _, ok := d.registry.Handler(envelope.CommandType); ok {
			return envelope.CommandType
		}
		return TagUnknown
	}

	message := string(raw)
	for _, tag := range d.registry.Tags() {
		if strings.Contains(message, tag) {
			return tag
		}
	}
	return TagUnknown
}
