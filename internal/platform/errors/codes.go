// Package errors provides structured error handling with gRPC status mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Event validation errors
	CodeEventTitleEmpty        Code = "EVENT_TITLE_EMPTY"
	CodeEventOwnerEmpty        Code = "EVENT_OWNER_EMPTY"
	CodeEventEndNotAfterStart  Code = "EVENT_END_NOT_AFTER_START"
	CodeEventRecurrenceInvalid Code = "EVENT_RECURRENCE_INVALID"

	// Versioning errors
	CodeBookingConflict  Code = "BOOKING_CONFLICT"
	CodeVersionStale     Code = "VERSION_STALE"
	CodeVersionConflict  Code = "VERSION_CONFLICT"
	CodeVersionCorrupt   Code = "VERSION_CORRUPT"
	CodePageTokenInvalid Code = "PAGE_TOKEN_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeEventTitleEmpty,
		CodeEventOwnerEmpty,
		CodeEventEndNotAfterStart,
		CodeEventRecurrenceInvalid,
		CodePageTokenInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - the write is well-formed but current state rejects it
	case CodeBookingConflict,
		CodeVersionStale:
		return codes.FailedPrecondition

	// Aborted - write races that the client should retry
	case CodeVersionConflict:
		return codes.Aborted

	case CodeNotFound:
		return codes.NotFound

	// DataLoss - stored history that no longer parses
	case CodeVersionCorrupt:
		return codes.DataLoss

	default:
		return codes.Internal
	}
}
