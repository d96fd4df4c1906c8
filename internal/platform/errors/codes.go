// Package errors provides structured error handling with machine-readable codes.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound indicates a referenced transaction is absent.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInvalidState indicates an operation illegal for the current status.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeInvalidArgument indicates a non-positive amount or a blank required field.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeRetryBudgetExceeded indicates the retry count is at its cap.
	CodeRetryBudgetExceeded Code = "RETRY_BUDGET_EXCEEDED"
	// CodeDecodeError indicates a malformed command payload.
	CodeDecodeError Code = "DECODE_ERROR"
	// CodePublishFailure indicates the event sink rejected a publish.
	CodePublishFailure Code = "PUBLISH_FAILURE"
	// CodeStatusConflict indicates a conditional write lost a concurrent race.
	CodeStatusConflict Code = "STATUS_CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidArgument, CodeDecodeError:
		return codes.InvalidArgument

	case CodeInvalidState, CodeRetryBudgetExceeded, CodeStatusConflict:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
