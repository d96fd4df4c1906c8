package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/command"
	"github.com/louisbranch/debitflow/internal/services/debit/storage"
)

// Attempt outcomes recorded per consumed message.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// CommandSource yields raw command messages for the listener workers.
type CommandSource interface {
	Dequeue(ctx context.Context) ([]byte, error)
}

// Listener consumes command messages with a pool of workers, dispatches
// each one, and records the attempt outcome for auditing. Handler failures
// are logged and recorded but never stop the worker pool.
type Listener struct {
	source     CommandSource
	dispatcher *command.Dispatcher
	attempts   storage.AttemptStore
	workers    int
	clock      func() time.Time
}

// NewListener builds a listener with the given worker count.
func NewListener(source CommandSource, dispatcher *command.Dispatcher, attempts storage.AttemptStore, workers int) *Listener {
	if workers <= 0 {
		workers = 1
	}
	return &Listener{
		source:     source,
		dispatcher: dispatcher,
		attempts:   attempts,
		workers:    workers,
		clock:      time.Now,
	}
}

// Run consumes messages until the context is cancelled or the source
// closes. It returns nil on clean shutdown.
func (l *Listener) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for worker := 0; worker < l.workers; worker++ {
		group.Go(func() error {
			return l.consume(ctx)
		})
	}
	return group.Wait()
}

func (l *Listener) consume(ctx context.Context) error {
	for {
		raw, err := l.source.Dequeue(ctx)
		if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if err != nil {
			return err
		}
		l.handle(ctx, raw)
	}
}

func (l *Listener) handle(ctx context.Context, raw []byte) {
	var envelope command.Envelope
	_ = json.Unmarshal(raw, &envelope)

	result, err := l.dispatcher.Dispatch(ctx, raw)
	outcome := OutcomeSucceeded
	lastError := ""
	switch {
	case err != nil:
		outcome = OutcomeFailed
		lastError = err.Error()
		log.Printf("command failed tag=%s correlation_id=%s error=%v", result.Tag, envelope.CorrelationID, err)
	case result.Dropped:
		outcome = OutcomeDropped
	}

	l.record(ctx, storage.AttemptRecord{
		CommandType:   result.Tag,
		Outcome:       outcome,
		CorrelationID: envelope.CorrelationID,
		LastError:     lastError,
		CreatedAt:     l.clock().UTC(),
	})
}

func (l *Listener) record(ctx context.Context, attempt storage.AttemptRecord) {
	if l.attempts == nil {
		return
	}
	if err := l.attempts.RecordAttempt(ctx, attempt); err != nil {
		log.Printf("record command attempt failed tag=%s error=%v", attempt.CommandType, err)
	}
}
