package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/command"
	"github.com/louisbranch/debitflow/internal/services/debit/storage"
)

type recordingHandler struct {
	tag string
	err error

	mu     sync.Mutex
	called int
}

func (h *recordingHandler) Tag() string { return h.tag }

func (h *recordingHandler) Handle(_ context.Context, _ []byte) error {
	h.mu.Lock()
	h.called++
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.called
}

type memoryAttemptStore struct {
	mu      sync.Mutex
	records []storage.AttemptRecord
}

func (s *memoryAttemptStore) RecordAttempt(_ context.Context, attempt storage.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, attempt)
	return nil
}

func (s *memoryAttemptStore) ListAttempts(_ context.Context, limit int) ([]storage.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return append([]storage.AttemptRecord(nil), s.records[:limit]...), nil
}

func (s *memoryAttemptStore) all() []storage.AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.AttemptRecord(nil), s.records...)
}

func newListenerFixture(t *testing.T, handlers ...command.Handler) (*Queue, *memoryAttemptStore, *Listener) {
	t.Helper()
	registry, err := command.NewRegistry(handlers...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	queue := NewQueue(8)
	attempts := &memoryAttemptStore{}
	listener := NewListener(queue, command.NewDispatcher(registry), attempts, 2)
	return queue, attempts, listener
}

func runListener(t *testing.T, queue *Queue, listener *Listener) func() {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- listener.Run(context.Background()) }()
	return func() {
		queue.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("listener run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("listener did not stop after queue close")
		}
	}
}

func TestListenerDispatchesAndRecordsSuccess(t *testing.T) {
	handler := &recordingHandler{tag: command.TagProcess}
	queue, attempts, listener := newListenerFixture(t, handler)
	wait := runListener(t, queue, listener)

	raw := []byte(`{"command_type":"PROCESS_DEBIT_TRANSACTION","correlation_id":"corr-7","transaction_id":"txn-1"}`)
	if err := queue.Enqueue(context.Background(), raw); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	wait()

	if handler.calls() != 1 {
		t.Fatalf("expected one handler call, got %d", handler.calls())
	}
	records := attempts.all()
	if len(records) != 1 {
		t.Fatalf("expected one attempt, got %d", len(records))
	}
	record := records[0]
	if record.Outcome != OutcomeSucceeded || record.CommandType != command.TagProcess {
		t.Fatalf("unexpected attempt %+v", record)
	}
	if record.CorrelationID != "corr-7" {
		t.Fatalf("expected correlation id, got %q", record.CorrelationID)
	}
}

func TestListenerRecordsFailureAndKeepsRunning(t *testing.T) {
	failing := &recordingHandler{tag: command.TagRetry, err: errors.New("retry budget exceeded")}
	ok := &recordingHandler{tag: command.TagCancel}
	queue, attempts, listener := newListenerFixture(t, failing, ok)
	wait := runListener(t, queue, listener)

	ctx := context.Background()
	if err := queue.Enqueue(ctx, []byte(`{"command_type":"RETRY_DEBIT_TRANSACTION"}`)); err != nil {
		t.Fatalf("enqueue retry: %v", err)
	}
	if err := queue.Enqueue(ctx, []byte(`{"command_type":"CANCEL_DEBIT_TRANSACTION"}`)); err != nil {
		t.Fatalf("enqueue cancel: %v", err)
	}
	wait()

	if ok.calls() != 1 {
		t.Fatal("expected listener to keep consuming after a failure")
	}

	outcomes := map[string]string{}
	for _, record := range attempts.all() {
		outcomes[record.CommandType] = record.Outcome
	}
	if outcomes[command.TagRetry] != OutcomeFailed {
		t.Fatalf("expected failed retry attempt, got %v", outcomes)
	}
	if outcomes[command.TagCancel] != OutcomeSucceeded {
		t.Fatalf("expected succeeded cancel attempt, got %v", outcomes)
	}

	var lastError string
	for _, record := range attempts.all() {
		if record.CommandType == command.TagRetry {
			lastError = record.LastError
		}
	}
	if lastError == "" {
		t.Fatal("expected failure detail on the attempt record")
	}
}

func TestListenerRecordsDroppedForUnknownMessages(t *testing.T) {
	handler := &recordingHandler{tag: command.TagCreate}
	queue, attempts, listener := newListenerFixture(t, handler)
	wait := runListener(t, queue, listener)

	if err := queue.Enqueue(context.Background(), []byte(`{"payload":"no known tag"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	wait()

	if handler.calls() != 0 {
		t.Fatal("expected no handler call for unknown message")
	}
	records := attempts.all()
	if len(records) != 1 || records[0].Outcome != OutcomeDropped || records[0].CommandType != command.TagUnknown {
		t.Fatalf("unexpected attempts %+v", records)
	}
}

func TestListenerStopsOnContextCancel(t *testing.T) {
	handler := &recordingHandler{tag: command.TagCreate}
	queue, _, listener := newListenerFixture(t, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
	queue.Close()
}
