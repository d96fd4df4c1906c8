package command

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	perrors "github.com/louisbranch/debitflow/internal/platform/errors"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/transaction"
)

// Engine is the lifecycle surface handlers drive.
type Engine interface {
	Create(ctx context.Context, input transaction.CreateInput) (transaction.Transaction, error)
	Process(ctx context.Context, id string) (transaction.Transaction, error)
	Retry(ctx context.Context, id string) (transaction.Transaction, error)
	Cancel(ctx context.Context, id, reason string) (transaction.Transaction, error)
}

// Handlers builds the full handler set for the engine.
func Handlers(engine Engine) []Handler {
	return []Handler{
		&CreateHandler{engine: engine},
		&ProcessHandler{engine: engine},
		&RetryHandler{engine: engine},
		&CancelHandler{engine: engine},
		&ValidateHandler{},
	}
}

func decode(raw []byte, tag string, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &perrors.Error{
			Code:     perrors.CodeDecodeError,
			Message:  "command payload is not valid JSON",
			Metadata: map[string]string{"command_type": tag},
			Cause:    err,
		}
	}
	return nil
}

func requireTransactionID(id, tag string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", perrors.WithMetadata(perrors.CodeInvalidArgument, "transaction id is required",
			map[string]string{"command_type": tag})
	}
	return id, nil
}

// CreateHandler creates a transaction from a CREATE command.
type CreateHandler struct {
	engine Engine
}

func (h *CreateHandler) Tag() string { return TagCreate }

func (h *CreateHandler) Handle(ctx context.Context, raw []byte) error {
	var cmd CreateTransaction
	if err := decode(raw, TagCreate, &cmd); err != nil {
		return err
	}

	txn, err := h.engine.Create(ctx, transaction.CreateInput{
		CompanyID:       cmd.CompanyID,
		CompanyDocument: cmd.CompanyDocument,
		CompanyName:     cmd.CompanyName,
		BankAccountID:   cmd.BankAccountID,
		Amount:          cmd.Amount,
		Description:     cmd.Description,
		ScheduledFor:    cmd.ScheduledFor,
		CorrelationID:   cmd.CorrelationID,
	})
	if err != nil {
		return err
	}
	log.Printf("create debit transaction handled id=%s company_id=%s", txn.ID, txn.CompanyID)
	return nil
}

// ProcessHandler starts processing for a PROCESS command.
type ProcessHandler struct {
	engine Engine
}

func (h *ProcessHandler) Tag() string { return TagProcess }

func (h *ProcessHandler) Handle(ctx context.Context, raw []byte) error {
	var cmd ProcessTransaction
	if err := decode(raw, TagProcess, &cmd); err != nil {
		return err
	}
	id, err := requireTransactionID(cmd.TransactionID, TagProcess)
	if err != nil {
		return err
	}

	txn, err := h.engine.Process(ctx, id)
	if err != nil {
		return err
	}
	log.Printf("process debit transaction handled id=%s status=%s", txn.ID, txn.Status)
	return nil
}

// RetryHandler requests another attempt for a RETRY command.
type RetryHandler struct {
	engine Engine
}

func (h *RetryHandler) Tag() string { return TagRetry }

func (h *RetryHandler) Handle(ctx context.Context, raw []byte) error {
	var cmd RetryTransaction
	if err := decode(raw, TagRetry, &cmd); err != nil {
		return err
	}
	id, err := requireTransactionID(cmd.TransactionID, TagRetry)
	if err != nil {
		return err
	}

	txn, err := h.engine.Retry(ctx, id)
	if err != nil {
		return err
	}
	log.Printf("retry debit transaction handled id=%s retry_count=%d", txn.ID, txn.RetryCount)
	return nil
}

// CancelHandler cancels a transaction for a CANCEL command.
type CancelHandler struct {
	engine Engine
}

func (h *CancelHandler) Tag() string { return TagCancel }

func (h *CancelHandler) Handle(ctx context.Context, raw []byte) error {
	var cmd CancelTransaction
	if err := decode(raw, TagCancel, &cmd); err != nil {
		return err
	}
	id, err := requireTransactionID(cmd.TransactionID, TagCancel)
	if err != nil {
		return err
	}

	txn, err := h.engine.Cancel(ctx, id, cmd.Reason)
	if err != nil {
		return err
	}
	log.Printf("cancel debit transaction handled id=%s status=%s", txn.ID, txn.Status)
	return nil
}

// ValidateHandler checks creation fields without persisting anything.
type ValidateHandler struct{}

func (h *ValidateHandler) Tag() string { return TagValidate }

func (h *ValidateHandler) Handle(ctx context.Context, raw []byte) error {
	var cmd ValidateTransaction
	if err := decode(raw, TagValidate, &cmd); err != nil {
		return err
	}

	input := transaction.CreateInput{
		CompanyID:       cmd.CompanyID,
		CompanyDocument: cmd.CompanyDocument,
		CompanyName:     cmd.CompanyName,
		BankAccountID:   cmd.BankAccountID,
		Amount:          cmd.Amount,
		Description:     cmd.Description,
		ScheduledFor:    cmd.ScheduledFor,
		CorrelationID:   cmd.CorrelationID,
	}
	if _, err := transaction.NormalizeCreateInput(input); err != nil {
		return err
	}
	log.Printf("validate debit transaction handled company_id=%s", strings.TrimSpace(cmd.CompanyID))
	return nil
}
