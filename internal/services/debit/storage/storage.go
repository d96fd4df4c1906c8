// Package storage declares the persistence contracts consumed by the debit core.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/transaction"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrStatusConflict indicates a conditional write observed a persisted status
// outside the expected set. The caller raced a concurrent mutation.
var ErrStatusConflict = errors.New("persisted status conflicts with expected status")

// TransactionStore persists debit transaction records keyed by transaction ID,
// with secondary lookups by company, status, and scheduled time. It must be
// safe for concurrent use by multiple workers.
type TransactionStore interface {
	// Put persists a transaction record unconditionally.
	Put(ctx context.Context, txn transaction.Transaction) error
	// PutExpecting persists a transaction only if the currently persisted
	// record's status is one of expected. A missing record is allowed when
	// expected is empty (initial insert). Returns ErrStatusConflict otherwise.
	PutExpecting(ctx context.Context, txn transaction.Transaction, expected ...transaction.Status) error
	// Get fetches a transaction by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (transaction.Transaction, error)
	// ListByCompany lists transactions owned by a company.
	ListByCompany(ctx context.Context, companyID string) ([]transaction.Transaction, error)
	// ListByStatus lists transactions with the given status.
	ListByStatus(ctx context.Context, status transaction.Status) ([]transaction.Transaction, error)
	// ListScheduledBetween lists transactions scheduled inside [start, end].
	ListScheduledBetween(ctx context.Context, start, end time.Time) ([]transaction.Transaction, error)
	// ListFailedEligibleForRetry lists FAILED transactions with retry budget left.
	ListFailedEligibleForRetry(ctx context.Context) ([]transaction.Transaction, error)
	// CountByCompanyAndStatus counts a company's transactions with the given status.
	CountByCompanyAndStatus(ctx context.Context, companyID string, status transaction.Status) (int64, error)
	// Delete removes a record by ID. Administrative use only; the lifecycle
	// engine never deletes.
	Delete(ctx context.Context, id string) error
}

// AttemptRecord captures one command processing attempt for the audit trail.
type AttemptRecord struct {
	ID            int64
	CommandType   string
	Outcome       string
	CorrelationID string
	LastError     string
	CreatedAt     time.Time
}

// AttemptStore persists an append-only audit of command processing attempts.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	ListAttempts(ctx context.Context, limit int) ([]AttemptRecord, error)
}
