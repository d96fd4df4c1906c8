package command

import (
	"context"
	"errors"
	"testing"
)

func newTestDispatcher(t *testing.T, handlers ...Handler) *Dispatcher {
	t.Helper()
	registry, err := NewRegistry(handlers...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return NewDispatcher(registry)
}

func TestDispatchPrefersEnvelopeField(t *testing.T) {
	create := &stubHandler{tag: TagCreate}
	cancel := &stubHandler{tag: TagCancel}
	dispatcher := newTestDispatcher(t, create, cancel)

	// The body mentions the cancel tag, but the envelope field wins.
	raw := []byte(`{"command_type":"CREATE_DEBIT_TRANSACTION","description":"CANCEL_DEBIT_TRANSACTION"}`)
	result, err := dispatcher.Dispatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Tag != TagCreate || result.Dropped {
		t.Fatalf("unexpected result %+v", result)
	}
	if create.called != 1 || cancel.called != 0 {
		t.Fatalf("expected only create handler, got create=%d cancel=%d", create.called, cancel.called)
	}
}

func TestDispatchFallsBackToSubstringMatch(t *testing.T) {
	process := &stubHandler{tag: TagProcess}
	dispatcher := newTestDispatcher(t, process)

	raw := []byte(`{"payload":"PROCESS_DEBIT_TRANSACTION txn-1"}`)
	result, err := dispatcher.Dispatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Tag != TagProcess {
		t.Fatalf("expected process tag, got %+v", result)
	}
	if process.called != 1 {
		t.Fatalf("expected one handler call, got %d", process.called)
	}
}

func TestDispatchDropsUnknownMessages(t *testing.T) {
	create := &stubHandler{tag: TagCreate}
	dispatcher := newTestDispatcher(t, create)

	result, err := dispatcher.Dispatch(context.Background(), []byte(`{"payload":"no tag here"}`))
	if err != nil {
		t.Fatalf("expected unknown messages to drop without error, got %v", err)
	}
	if result.Tag != TagUnknown || !result.Dropped {
		t.Fatalf("unexpected result %+v", result)
	}
	if create.called != 0 {
		t.Fatal("expected no handler call for unknown message")
	}
}

func TestDispatchDropsUnregisteredEnvelopeType(t *testing.T) {
	create := &stubHandler{tag: TagCreate}
	dispatcher := newTestDispatcher(t, create)

	raw := []byte(`{"command_type":"SETTLE_DEBIT_TRANSACTION"}`)
	result, err := dispatcher.Dispatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.Dropped {
		t.Fatalf("expected drop for unregistered envelope type, got %+v", result)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("engine unavailable")
	retry := &stubHandler{tag: TagRetry, err: wantErr}
	dispatcher := newTestDispatcher(t, retry)

	result, err := dispatcher.Dispatch(context.Background(), []byte(`{"command_type":"RETRY_DEBIT_TRANSACTION"}`))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if result.Tag != TagRetry {
		t.Fatalf("expected retry tag on failure, got %+v", result)
	}
}
