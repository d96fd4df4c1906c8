package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/debitflow/internal/id"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/command"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/transaction"
)

// scheduleReader is the engine surface the sweeper polls.
type scheduleReader interface {
	ListScheduledBetween(ctx context.Context, start, end time.Time) ([]transaction.Transaction, error)
	ListFailedEligibleForRetry(ctx context.Context) ([]transaction.Transaction, error)
}

// commandEnqueuer accepts raw command messages for the listener.
type commandEnqueuer interface {
	Enqueue(ctx context.Context, raw []byte) error
}

// Sweeper periodically enqueues PROCESS commands for due transactions and
// RETRY commands for failed transactions with remaining budget. Individual
// enqueue failures are logged; the sweep continues.
type Sweeper struct {
	reader   scheduleReader
	queue    commandEnqueuer
	interval time.Duration
	clock    func() time.Time
	newID    func() (string, error)
}

// NewSweeper builds a sweeper with the given poll interval.
func NewSweeper(reader scheduleReader, queue commandEnqueuer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		reader:   reader,
		queue:    queue,
		interval: interval,
		clock:    time.Now,
		newID:    id.NewID,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("sweep failed error=%v", err)
			}
		}
	}
}

// Sweep runs one pass over due and retry-eligible transactions.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.clock().UTC()

	due, err := s.reader.ListScheduledBetween(ctx, time.Unix(0, 0).UTC(), now)
	if err != nil {
		return fmt.Errorf("list due transactions: %w", err)
	}
	for _, txn := range due {
		if !txn.Status.CanProcess() {
			continue
		}
		s.enqueueCommand(ctx, command.TagProcess, txn)
	}

	eligible, err := s.reader.ListFailedEligibleForRetry(ctx)
	if err != nil {
		return fmt.Errorf("list retry-eligible transactions: %w", err)
	}
	for _, txn := range eligible {
		s.enqueueCommand(ctx, command.TagRetry, txn)
	}
	return nil
}

func (s *Sweeper) enqueueCommand(ctx context.Context, tag string, txn transaction.Transaction) {
	commandID, err := s.newID()
	if err != nil {
		log.Printf("sweep command id failed tag=%s transaction_id=%s error=%v", tag, txn.ID, err)
		return
	}
	raw, err := json.Marshal(struct {
		CommandType   string `json:"command_type"`
		CommandID     string `json:"command_id"`
		CorrelationID string `json:"correlation_id"`
		TransactionID string `json:"transaction_id"`
	}{
		CommandType:   tag,
		CommandID:     commandID,
		CorrelationID: txn.CorrelationID,
		TransactionID: txn.ID,
	})
	if err != nil {
		log.Printf("sweep encode failed tag=%s transaction_id=%s error=%v", tag, txn.ID, err)
		return
	}
	if err := s.queue.Enqueue(ctx, raw); err != nil {
		log.Printf("sweep enqueue failed tag=%s transaction_id=%s error=%v", tag, txn.ID, err)
	}
}
