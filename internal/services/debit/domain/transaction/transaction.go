// Package transaction defines the debit transaction model and its lifecycle rules.
package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/louisbranch/debitflow/internal/id"
	perrors "github.com/louisbranch/debitflow/internal/platform/errors"
)

// MaxRetryAttempts caps automatic reprocessing attempts after a failure.
const MaxRetryAttempts = 3

// Transaction represents a scheduled debit moving funds from a company-held
// account. Records are mutated in place through lifecycle operations and are
// never physically deleted by the core.
type Transaction struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	CompanyDocument string          `json:"company_document"`
	CompanyName     string          `json:"company_name"`
	BankAccountID   string          `json:"bank_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Status          Status          `json:"status"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	ScheduledFor    time.Time       `json:"scheduled_for"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CorrelationID   string          `json:"correlation_id"`
	RetryCount      int             `json:"retry_count"`
}

// CreateInput describes the fields needed to create a transaction.
type CreateInput struct {
	CompanyID       string
	CompanyDocument string
	CompanyName     string
	BankAccountID   string
	Amount          decimal.Decimal
	Description     string
	ScheduledFor    time.Time
	CorrelationID   string
}

// Create builds a new pending transaction with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Transaction, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Transaction{}, err
	}

	transactionID, err := idGenerator()
	if err != nil {
		return Transaction{}, fmt.Errorf("generate transaction id: %w", err)
	}

	createdAt := now().UTC()
	return Transaction{
		ID:              transactionID,
		CompanyID:       normalized.CompanyID,
		CompanyDocument: normalized.CompanyDocument,
		CompanyName:     normalized.CompanyName,
		BankAccountID:   normalized.BankAccountID,
		Amount:          normalized.Amount,
		Description:     normalized.Description,
		Status:          StatusPending,
		ScheduledFor:    normalized.ScheduledFor,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
		CorrelationID:   normalized.CorrelationID,
		RetryCount:      0,
	}, nil
}

// NormalizeCreateInput trims and validates transaction input fields.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.CompanyID = strings.TrimSpace(input.CompanyID)
	input.CompanyDocument = strings.TrimSpace(input.CompanyDocument)
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	input.BankAccountID = strings.TrimSpace(input.BankAccountID)
	input.Description = strings.TrimSpace(input.Description)
	input.CorrelationID = strings.TrimSpace(input.CorrelationID)

	if input.CompanyID == "" {
		return CreateInput{}, perrors.New(perrors.CodeInvalidArgument, "company id is required")
	}
	if input.CompanyDocument == "" {
		return CreateInput{}, perrors.New(perrors.CodeInvalidArgument, "company document is required")
	}
	if input.CompanyName == "" {
		return CreateInput{}, perrors.New(perrors.CodeInvalidArgument, "company name is required")
	}
	if input.BankAccountID == "" {
		return CreateInput{}, perrors.New(perrors.CodeInvalidArgument, "bank account id is required")
	}
	if !input.Amount.IsPositive() {
		return CreateInput{}, perrors.WithMetadata(perrors.CodeInvalidArgument, "amount must be positive", map[string]string{
			"amount": input.Amount.String(),
		})
	}
	return input, nil
}

// HasRetryBudget reports whether the transaction may still be retried.
func (t Transaction) HasRetryBudget() bool {
	return t.RetryCount < MaxRetryAttempts
}
