// Package event defines the immutable domain events emitted by lifecycle operations.
package event

import (
	"strings"
	"time"
)

// Type identifies the kind of a debit transaction event.
type Type string

// Lifecycle event types. The wire values match the upstream queue contract.
const (
	// TypeCreated records the creation of a transaction.
	TypeCreated Type = "DEBIT_TRANSACTION_CREATED"
	// TypeProcessing records the start of processing.
	TypeProcessing Type = "DEBIT_TRANSACTION_PROCESSING"
	// TypeRetrying records a retry attempt after a failure.
	TypeRetrying Type = "DEBIT_TRANSACTION_RETRYING"
	// TypeCancelled records a cancellation.
	TypeCancelled Type = "DEBIT_TRANSACTION_CANCELLED"
	// TypeProcessed records a successful settlement outcome.
	TypeProcessed Type = "DEBIT_TRANSACTION_PROCESSED"
	// TypeFailed records a failed settlement outcome.
	TypeFailed Type = "DEBIT_TRANSACTION_FAILED"
)

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Event is an immutable record of a completed state change. Produced exactly
// once per successful engine operation; never mutated or reused.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"event_id"`
	// TransactionID is the subject transaction.
	TransactionID string `json:"transaction_id"`
	// Type identifies the kind of state change.
	Type Type `json:"event_type"`
	// Payload holds a human-readable summary of the change.
	Payload string `json:"payload"`
	// Timestamp is when the state change completed.
	Timestamp time.Time `json:"timestamp"`
	// CorrelationID threads the triggering command through to consumers.
	CorrelationID string `json:"correlation_id"`
	// CompanyID is the owning company of the subject transaction.
	CompanyID string `json:"company_id"`
}
