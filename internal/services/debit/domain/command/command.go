// Package command defines the inbound command types, the handler registry,
// and the dispatcher that routes raw queue messages to typed handlers.
package command

import (
	"time"

	"github.com/shopspring/decimal"
)

// Command type tags. The wire values match the upstream queue contract.
const (
	TagCreate   = "CREATE_DEBIT_TRANSACTION"
	TagProcess  = "PROCESS_DEBIT_TRANSACTION"
	TagRetry    = "RETRY_DEBIT_TRANSACTION"
	TagCancel   = "CANCEL_DEBIT_TRANSACTION"
	TagValidate = "VALIDATE_DEBIT_TRANSACTION"

	// TagUnknown marks messages that match no registered tag. Such messages
	// are logged and dropped; they never reach a handler.
	TagUnknown = "UNKNOWN"
)

// Envelope carries the structured command type field. Messages without it
// fall back to substring tag detection for compatibility with older senders.
type Envelope struct {
	CommandType   string `json:"command_type"`
	CorrelationID string `json:"correlation_id"`
}

// CreateTransaction requests creation of a new debit transaction.
type CreateTransaction struct {
	CommandID       string          `json:"command_id"`
	CorrelationID   string          `json:"correlation_id"`
	CompanyID       string          `json:"company_id"`
	CompanyDocument string          `json:"company_document"`
	CompanyName     string          `json:"company_name"`
	BankAccountID   string          `json:"bank_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ScheduledFor    time.Time       `json:"scheduled_for"`
}

// ValidateTransaction requests a pre-flight check of creation fields.
// It carries the same shape as CreateTransaction and mutates nothing.
type ValidateTransaction = CreateTransaction

// ProcessTransaction requests that processing start for a transaction.
type ProcessTransaction struct {
	CommandID     string `json:"command_id"`
	CorrelationID string `json:"correlation_id"`
	TransactionID string `json:"transaction_id"`
}

// RetryTransaction requests another attempt for a failed transaction.
type RetryTransaction struct {
	CommandID     string `json:"command_id"`
	CorrelationID string `json:"correlation_id"`
	TransactionID string `json:"transaction_id"`
}

// CancelTransaction requests cancellation with a reason.
type CancelTransaction struct {
	CommandID     string `json:"command_id"`
	CorrelationID string `json:"correlation_id"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}
