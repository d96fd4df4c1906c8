package transaction

import "strings"

// Status identifies where a transaction sits in its lifecycle.
type Status string

const (
	// StatusPending is the initial status assigned at creation.
	StatusPending Status = "PENDING"
	// StatusScheduled marks a transaction queued by upstream scheduling.
	StatusScheduled Status = "SCHEDULED"
	// StatusProcessing marks a transaction handed to settlement.
	StatusProcessing Status = "PROCESSING"
	// StatusProcessed marks a settled transaction. Terminal for cancellation.
	StatusProcessed Status = "PROCESSED"
	// StatusFailed marks a transaction whose settlement failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled marks a transaction cancelled before settlement.
	StatusCancelled Status = "CANCELLED"
	// StatusRetrying marks a failed transaction queued for another attempt.
	StatusRetrying Status = "RETRYING"
)

// Statuses lists every valid status value.
var Statuses = []Status{
	StatusPending,
	StatusScheduled,
	StatusProcessing,
	StatusProcessed,
	StatusFailed,
	StatusCancelled,
	StatusRetrying,
}

// IsValid reports whether the status is a known lifecycle value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusProcessing, StatusProcessed,
		StatusFailed, StatusCancelled, StatusRetrying:
		return true
	}
	return false
}

// CanProcess reports whether processing may start from this status.
func (s Status) CanProcess() bool {
	return s == StatusPending || s == StatusScheduled
}

// CanRetry reports whether a retry may start from this status.
// The retry budget is checked separately against RetryCount.
func (s Status) CanRetry() bool {
	return s == StatusFailed
}

// CanCancel reports whether cancellation is allowed from this status.
// A processed transaction is immutable with respect to cancellation.
func (s Status) CanCancel() bool {
	return s != StatusProcessed
}

// CanSettle reports whether a settlement outcome may be applied from this
// status. Settlement concludes an in-flight processing or retry attempt.
func (s Status) CanSettle() bool {
	return s == StatusProcessing || s == StatusRetrying
}

// ParseStatus converts a stored or wire value into a Status.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	return s, s.IsValid()
}
