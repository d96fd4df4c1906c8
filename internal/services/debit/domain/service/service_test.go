package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	perrors "github.com/louisbranch/debitflow/internal/platform/errors"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/event"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/transaction"
	"github.com/louisbranch/debitflow/internal/services/debit/storage/bbolt"
)

type capturingSink struct {
	events []event.Event
	err    error
}

func (s *capturingSink) Publish(_ context.Context, evt event.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *capturingSink) last(t *testing.T) event.Event {
	t.Helper()
	if len(s.events) == 0 {
		t.Fatal("expected at least one event")
	}
	return s.events[len(s.events)-1]
}

type fixture struct {
	service *Service
	store   *bbolt.Store
	sink    *capturingSink
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := bbolt.Open(filepath.Join(t.TempDir(), "debit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sink := &capturingSink{}
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	counter := 0
	service := New(store, sink, nil,
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() (string, error) {
			counter++
			return fmt.Sprintf("id-%04d", counter), nil
		}),
	)
	return &fixture{service: service, store: store, sink: sink, now: now}
}

func sampleInput() transaction.CreateInput {
	return transaction.CreateInput{
		CompanyID:       "company-1",
		CompanyDocument: "12345678000190",
		CompanyName:     "Acme Ltd",
		BankAccountID:   "account-1",
		Amount:          decimal.RequireFromString("250.00"),
		Description:     "supplier invoice",
		ScheduledFor:    time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC),
		CorrelationID:   "corr-1",
	}
}

func (f *fixture) create(t *testing.T) transaction.Transaction {
	t.Helper()
	txn, err := f.service.Create(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return txn
}

func TestCreatePersistsAndEmitsEvent(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)

	if txn.Status != transaction.StatusPending {
		t.Fatalf("expected PENDING, got %s", txn.Status)
	}
	if txn.RetryCount != 0 {
		t.Fatalf("expected zero retries, got %d", txn.RetryCount)
	}

	stored, err := f.store.Get(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != transaction.StatusPending || !stored.Amount.Equal(txn.Amount) {
		t.Fatalf("unexpected stored record %+v", stored)
	}

	evt := f.sink.last(t)
	if evt.Type != event.TypeCreated || evt.TransactionID != txn.ID {
		t.Fatalf("unexpected event %+v", evt)
	}
	wantPayload := fmt.Sprintf("Debit transaction %s created for company %s", txn.ID, txn.CompanyID)
	if evt.Payload != wantPayload {
		t.Fatalf("unexpected payload %q", evt.Payload)
	}
	if evt.CorrelationID != "corr-1" || evt.CompanyID != "company-1" {
		t.Fatalf("unexpected event context %+v", evt)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	input := sampleInput()
	input.Amount = decimal.Zero

	_, err := f.service.Create(context.Background(), input)
	if perrors.CodeOf(err) != perrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if len(f.sink.events) != 0 {
		t.Fatal("expected no event for rejected creation")
	}
}

func TestProcessMovesPendingToProcessing(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)

	processed, err := f.service.Process(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed.Status != transaction.StatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", processed.Status)
	}

	evt := f.sink.last(t)
	if evt.Type != event.TypeProcessing {
		t.Fatalf("expected processing event, got %s", evt.Type)
	}
	if want := fmt.Sprintf("Debit transaction %s processing started", txn.ID); evt.Payload != want {
		t.Fatalf("unexpected payload %q", evt.Payload)
	}
}

func TestProcessRejectsInvalidStateAndLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)

	if _, err := f.service.Cancel(context.Background(), txn.ID, "duplicate"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	eventsBefore := len(f.sink.events)

	_, err := f.service.Process(context.Background(), txn.ID)
	if perrors.CodeOf(err) != perrors.CodeInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}

	stored, getErr := f.store.Get(context.Background(), txn.ID)
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if stored.Status != transaction.StatusCancelled {
		t.Fatalf("expected record unchanged, got %s", stored.Status)
	}
	if len(f.sink.events) != eventsBefore {
		t.Fatal("expected no event for rejected operation")
	}
}

func TestProcessMissingTransactionReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Process(context.Background(), "missing")
	if perrors.CodeOf(err) != perrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRetryBudgetIsEnforced(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)
	ctx := context.Background()

	for attempt := 1; attempt <= transaction.MaxRetryAttempts; attempt++ {
		if _, err := f.service.Process(ctx, txn.ID); err != nil && attempt == 1 {
			t.Fatalf("process: %v", err)
		}
		failed, err := f.service.Settle(ctx, txn.ID, OutcomeFailed, "bank rejected")
		if err != nil {
			t.Fatalf("settle attempt %d: %v", attempt, err)
		}
		if failed.Status != transaction.StatusFailed {
			t.Fatalf("expected FAILED, got %s", failed.Status)
		}

		retried, err := f.service.Retry(ctx, txn.ID)
		if err != nil {
			t.Fatalf("retry attempt %d: %v", attempt, err)
		}
		if retried.RetryCount != attempt {
			t.Fatalf("expected retry count %d, got %d", attempt, retried.RetryCount)
		}
		if retried.Status != transaction.StatusRetrying {
			t.Fatalf("expected RETRYING, got %s", retried.Status)
		}
	}

	if _, err := f.service.Settle(ctx, txn.ID, OutcomeFailed, "bank rejected"); err != nil {
		t.Fatalf("final settle: %v", err)
	}
	_, err := f.service.Retry(ctx, txn.ID)
	if perrors.CodeOf(err) != perrors.CodeRetryBudgetExceeded {
		t.Fatalf("expected retry budget exceeded, got %v", err)
	}
}

func TestRetryRequiresFailedStatus(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)

	_, err := f.service.Retry(context.Background(), txn.ID)
	if perrors.CodeOf(err) != perrors.CodeInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCancelRecordsReasonAndEmitsEvent(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)

	cancelled, err := f.service.Cancel(context.Background(), txn.ID, "  requested by customer  ")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != transaction.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.FailureReason != "requested by customer" {
		t.Fatalf("unexpected reason %q", cancelled.FailureReason)
	}

	evt := f.sink.last(t)
	if evt.Type != event.TypeCancelled {
		t.Fatalf("expected cancelled event, got %s", evt.Type)
	}
	if want := fmt.Sprintf("Debit transaction %s cancelled: requested by customer", txn.ID); evt.Payload != want {
		t.Fatalf("unexpected payload %q", evt.Payload)
	}
}

func TestCancelRejectsProcessedTransaction(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)
	ctx := context.Background()

	if _, err := f.service.Process(ctx, txn.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := f.service.Settle(ctx, txn.ID, OutcomeProcessed, ""); err != nil {
		t.Fatalf("settle: %v", err)
	}

	_, err := f.service.Cancel(ctx, txn.ID, "too late")
	if perrors.CodeOf(err) != perrors.CodeInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestSettleProcessedSetsProcessedAt(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)
	ctx := context.Background()

	if _, err := f.service.Process(ctx, txn.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	settled, err := f.service.Settle(ctx, txn.ID, OutcomeProcessed, "")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != transaction.StatusProcessed {
		t.Fatalf("expected PROCESSED, got %s", settled.Status)
	}
	if settled.ProcessedAt == nil || !settled.ProcessedAt.Equal(f.now) {
		t.Fatalf("unexpected processed at %v", settled.ProcessedAt)
	}

	evt := f.sink.last(t)
	if evt.Type != event.TypeProcessed {
		t.Fatalf("expected processed event, got %s", evt.Type)
	}
}

func TestSettleRejectsUnknownOutcome(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)
	ctx := context.Background()

	if _, err := f.service.Process(ctx, txn.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	_, err := f.service.Settle(ctx, txn.ID, Outcome("REVERSED"), "")
	if perrors.CodeOf(err) != perrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSettleRequiresProcessingOrRetrying(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t)

	_, err := f.service.Settle(context.Background(), txn.ID, OutcomeProcessed, "")
	if perrors.CodeOf(err) != perrors.CodeInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestPublishFailureIsPropagated(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("broker unavailable")

	_, err := f.service.Create(context.Background(), sampleInput())
	if perrors.CodeOf(err) != perrors.CodePublishFailure {
		t.Fatalf("expected publish failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish") {
		t.Fatalf("unexpected message %q", err)
	}
}

func TestReadOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t)
	second := f.create(t)

	if _, err := f.service.Process(ctx, second.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := f.service.Get(ctx, first.ID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("get: %v %+v", err, got)
	}

	byCompany, err := f.service.ListByCompany(ctx, "company-1")
	if err != nil || len(byCompany) != 2 {
		t.Fatalf("list by company: %v (%d)", err, len(byCompany))
	}

	pending, err := f.service.ListByStatus(ctx, transaction.StatusPending)
	if err != nil || len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("list by status: %v %+v", err, pending)
	}

	window, err := f.service.ListScheduledBetween(ctx,
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC))
	if err != nil || len(window) != 2 {
		t.Fatalf("list scheduled: %v (%d)", err, len(window))
	}

	count, err := f.service.CountByCompanyAndStatus(ctx, "company-1", transaction.StatusProcessing)
	if err != nil || count != 1 {
		t.Fatalf("count: %v (%d)", err, count)
	}

	if _, err := f.service.ListByStatus(ctx, transaction.Status("BOGUS")); perrors.CodeOf(err) != perrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for unknown status, got %v", err)
	}
	if _, err := f.service.ListScheduledBetween(ctx, f.now, f.now.Add(-time.Hour)); perrors.CodeOf(err) != perrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for inverted window, got %v", err)
	}
}

func TestListFailedEligibleForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.create(t)

	if _, err := f.service.Process(ctx, txn.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := f.service.Settle(ctx, txn.ID, OutcomeFailed, "insufficient funds"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	eligible, err := f.service.ListFailedEligibleForRetry(ctx)
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != txn.ID {
		t.Fatalf("unexpected eligible set %+v", eligible)
	}
}
