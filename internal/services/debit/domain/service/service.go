// Package service implements the debit transaction lifecycle engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/debitflow/internal/id"
	perrors "github.com/louisbranch/debitflow/internal/platform/errors"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/event"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/transaction"
	"github.com/louisbranch/debitflow/internal/services/debit/observability"
	"github.com/louisbranch/debitflow/internal/services/debit/storage"
)

// EventSink receives lifecycle events after each successful state change.
type EventSink interface {
	Publish(ctx context.Context, evt event.Event) error
}

// Outcome is the terminal result reported by the settlement provider.
type Outcome string

const (
	// OutcomeProcessed settles the transaction successfully.
	OutcomeProcessed Outcome = "PROCESSED"
	// OutcomeFailed settles the transaction as failed.
	OutcomeFailed Outcome = "FAILED"
)

// Service drives debit transactions through their lifecycle. State changes
// are persisted with conditional writes so concurrent operations on the
// same transaction cannot interleave; the loser observes an invalid state
// error carrying the freshly persisted status.
type Service struct {
	store   storage.TransactionStore
	sink    EventSink
	metrics *observability.Metrics
	clock   func() time.Time
	newID   func() (string, error)
}

// Option adjusts service construction.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides ID generation.
func WithIDGenerator(generator func() (string, error)) Option {
	return func(s *Service) { s.newID = generator }
}

// New builds a lifecycle service. Metrics may be nil.
func New(store storage.TransactionStore, sink EventSink, metrics *observability.Metrics, opts ...Option) *Service {
	service := &Service{
		store:   store,
		sink:    sink,
		metrics: metrics,
		clock:   time.Now,
		newID:   id.NewID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Create validates the input, persists a new pending transaction, and
// emits a created event.
func (s *Service) Create(ctx context.Context, input transaction.CreateInput) (transaction.Transaction, error) {
	sample := s.metrics.StartCreationTimer()
	defer sample.Stop(ctx)

	txn, err := transaction.Create(input, s.clock, s.newID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if err := s.store.Put(ctx, txn); err != nil {
		return transaction.Transaction{}, fmt.Errorf("persist transaction: %w", err)
	}

	payload := fmt.Sprintf("Debit transaction %s created for company %s", txn.ID, txn.CompanyID)
	if err := s.publish(ctx, txn, event.TypeCreated, payload); err != nil {
		return transaction.Transaction{}, err
	}
	s.metrics.RecordCreated(ctx)
	return txn, nil
}

// Process moves a pending or scheduled transaction into processing.
func (s *Service) Process(ctx context.Context, transactionID string) (transaction.Transaction, error) {
	sample := s.metrics.StartProcessingTimer()
	defer sample.Stop(ctx)

	txn, err := s.load(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if !txn.Status.CanProcess() {
		return transaction.Transaction{}, s.invalidState("process", txn, transaction.StatusProcessing)
	}

	expected := txn.Status
	txn.Status = transaction.StatusProcessing
	txn.UpdatedAt = s.clock().UTC()
	if err := s.persistExpecting(ctx, "process", txn, expected); err != nil {
		return transaction.Transaction{}, err
	}

	payload := fmt.Sprintf("Debit transaction %s processing started", txn.ID)
	if err := s.publish(ctx, txn, event.TypeProcessing, payload); err != nil {
		return transaction.Transaction{}, err
	}
	s.metrics.RecordProcessed(ctx)
	return txn, nil
}

// Retry requests another processing attempt for a failed transaction.
// Attempts beyond the retry budget are rejected.
func (s *Service) Retry(ctx context.Context, transactionID string) (transaction.Transaction, error) {
	txn, err := s.load(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if !txn.Status.CanRetry() {
		return transaction.Transaction{}, s.invalidState("retry", txn, transaction.StatusRetrying)
	}
	if !txn.HasRetryBudget() {
		return transaction.Transaction{}, perrors.WithMetadata(perrors.CodeRetryBudgetExceeded,
			"retry budget exceeded", map[string]string{
				"transaction_id": txn.ID,
				"retry_count":    fmt.Sprintf("%d", txn.RetryCount),
			})
	}

	expected := txn.Status
	txn.Status = transaction.StatusRetrying
	txn.RetryCount++
	txn.UpdatedAt = s.clock().UTC()
	if err := s.persistExpecting(ctx, "retry", txn, expected); err != nil {
		return transaction.Transaction{}, err
	}

	payload := fmt.Sprintf("Debit transaction %s retry attempt %d", txn.ID, txn.RetryCount)
	if err := s.publish(ctx, txn, event.TypeRetrying, payload); err != nil {
		return transaction.Transaction{}, err
	}
	s.metrics.RecordRetried(ctx)
	return txn, nil
}

// Cancel stops a transaction that has not settled successfully and records
// the reason.
func (s *Service) Cancel(ctx context.Context, transactionID, reason string) (transaction.Transaction, error) {
	txn, err := s.load(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if !txn.Status.CanCancel() {
		return transaction.Transaction{}, s.invalidState("cancel", txn, transaction.StatusCancelled)
	}

	expected := txn.Status
	txn.Status = transaction.StatusCancelled
	txn.FailureReason = strings.TrimSpace(reason)
	txn.UpdatedAt = s.clock().UTC()
	if err := s.persistExpecting(ctx, "cancel", txn, expected); err != nil {
		return transaction.Transaction{}, err
	}

	payload := fmt.Sprintf("Debit transaction %s cancelled: %s", txn.ID, txn.FailureReason)
	if err := s.publish(ctx, txn, event.TypeCancelled, payload); err != nil {
		return transaction.Transaction{}, err
	}
	return txn, nil
}

// Settle records the terminal outcome of a processing attempt.
func (s *Service) Settle(ctx context.Context, transactionID string, outcome Outcome, failureReason string) (transaction.Transaction, error) {
	txn, err := s.load(ctx, transactionID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	var attempted transaction.Status
	switch outcome {
	case OutcomeProcessed:
		attempted = transaction.StatusProcessed
	case OutcomeFailed:
		attempted = transaction.StatusFailed
	default:
		return transaction.Transaction{}, perrors.WithMetadata(perrors.CodeInvalidArgument,
			"unknown settlement outcome", map[string]string{"outcome": string(outcome)})
	}
	if !txn.Status.CanSettle() {
		return transaction.Transaction{}, s.invalidState("settle", txn, attempted)
	}

	expected := txn.Status
	now := s.clock().UTC()
	txn.UpdatedAt = now

	var eventType event.Type
	var payload string
	if outcome == OutcomeProcessed {
		txn.Status = transaction.StatusProcessed
		txn.ProcessedAt = &now
		txn.FailureReason = ""
		eventType = event.TypeProcessed
		payload = fmt.Sprintf("Debit transaction %s processed", txn.ID)
	} else {
		txn.Status = transaction.StatusFailed
		txn.FailureReason = strings.TrimSpace(failureReason)
		eventType = event.TypeFailed
		payload = fmt.Sprintf("Debit transaction %s failed: %s", txn.ID, txn.FailureReason)
	}

	if err := s.persistExpecting(ctx, "settle", txn, expected); err != nil {
		return transaction.Transaction{}, err
	}
	if err := s.publish(ctx, txn, eventType, payload); err != nil {
		return transaction.Transaction{}, err
	}
	if outcome == OutcomeFailed {
		s.metrics.RecordFailed(ctx)
	}
	return txn, nil
}

// Get returns one transaction by ID.
func (s *Service) Get(ctx context.Context, transactionID string) (transaction.Transaction, error) {
	return s.load(ctx, transactionID)
}

// ListByCompany returns transactions owned by a company.
func (s *Service) ListByCompany(ctx context.Context, companyID string) ([]transaction.Transaction, error) {
	txns, err := s.store.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list by company: %w", err)
	}
	return txns, nil
}

// ListByStatus returns transactions in one lifecycle status.
func (s *Service) ListByStatus(ctx context.Context, status transaction.Status) ([]transaction.Transaction, error) {
	if !status.IsValid() {
		return nil, perrors.WithMetadata(perrors.CodeInvalidArgument, "unknown status",
			map[string]string{"status": string(status)})
	}
	txns, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	return txns, nil
}

// ListScheduledBetween returns transactions scheduled inside the window.
func (s *Service) ListScheduledBetween(ctx context.Context, start, end time.Time) ([]transaction.Transaction, error) {
	if end.Before(start) {
		return nil, perrors.New(perrors.CodeInvalidArgument, "window end precedes start")
	}
	txns, err := s.store.ListScheduledBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list scheduled: %w", err)
	}
	return txns, nil
}

// ListFailedEligibleForRetry returns failed transactions with retry budget.
func (s *Service) ListFailedEligibleForRetry(ctx context.Context) ([]transaction.Transaction, error) {
	txns, err := s.store.ListFailedEligibleForRetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("list failed eligible: %w", err)
	}
	return txns, nil
}

// CountByCompanyAndStatus counts a company's transactions in one status.
func (s *Service) CountByCompanyAndStatus(ctx context.Context, companyID string, status transaction.Status) (int64, error) {
	if !status.IsValid() {
		return 0, perrors.WithMetadata(perrors.CodeInvalidArgument, "unknown status",
			map[string]string{"status": string(status)})
	}
	count, err := s.store.CountByCompanyAndStatus(ctx, companyID, status)
	if err != nil {
		return 0, fmt.Errorf("count by company and status: %w", err)
	}
	return count, nil
}

func (s *Service) load(ctx context.Context, transactionID string) (transaction.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return transaction.Transaction{}, perrors.New(perrors.CodeInvalidArgument, "transaction id is required")
	}
	txn, err := s.store.Get(ctx, transactionID)
	if errors.Is(err, storage.ErrNotFound) {
		return transaction.Transaction{}, perrors.WithMetadata(perrors.CodeNotFound, "transaction not found",
			map[string]string{"transaction_id": transactionID})
	}
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}
	return txn, nil
}

// persistExpecting writes the transition conditioned on the previously
// observed status. A conflict means another operation won the race; the
// caller gets an invalid state error with the status that actually stuck.
func (s *Service) persistExpecting(ctx context.Context, operation string, txn transaction.Transaction, expected transaction.Status) error {
	err := s.store.PutExpecting(ctx, txn, expected)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrStatusConflict) {
		current, getErr := s.store.Get(ctx, txn.ID)
		metadata := map[string]string{
			"transaction_id": txn.ID,
			"operation":      operation,
		}
		if getErr == nil {
			metadata["current_status"] = string(current.Status)
		}
		return &perrors.Error{
			Code:     perrors.CodeInvalidState,
			Message:  fmt.Sprintf("transaction status changed concurrently during %s", operation),
			Metadata: metadata,
			Cause:    err,
		}
	}
	return fmt.Errorf("persist transition: %w", err)
}

func (s *Service) invalidState(operation string, txn transaction.Transaction, attempted transaction.Status) error {
	return perrors.WithMetadata(perrors.CodeInvalidState,
		fmt.Sprintf("transaction cannot %s from status %s", operation, txn.Status),
		map[string]string{
			"transaction_id":   txn.ID,
			"operation":        operation,
			"current_status":   string(txn.Status),
			"attempted_status": string(attempted),
		})
}

func (s *Service) publish(ctx context.Context, txn transaction.Transaction, eventType event.Type, payload string) error {
	if s.sink == nil {
		return nil
	}
	eventID, err := s.newID()
	if err != nil {
		return perrors.Wrap(perrors.CodePublishFailure, "generate event id", err)
	}
	evt := event.Event{
		ID:            eventID,
		TransactionID: txn.ID,
		Type:          eventType,
		Payload:       payload,
		Timestamp:     s.clock().UTC(),
		CorrelationID: txn.CorrelationID,
		CompanyID:     txn.CompanyID,
	}
	if err := s.sink.Publish(ctx, evt); err != nil {
		return &perrors.Error{
			Code:    perrors.CodePublishFailure,
			Message: fmt.Sprintf("publish %s event", eventType),
			Metadata: map[string]string{
				"transaction_id": txn.ID,
				"event_type":     string(eventType),
			},
			Cause: err,
		}
	}
	return nil
}
