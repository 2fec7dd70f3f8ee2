// Package errors is the error package used across the integration pipeline.
//
// It re-exports github.com/cockroachdb/errors so every layer gets stack traces,
// wrapping, hints and details from one import:
//
//	if err := store.Get(ctx, id); err != nil {
//	    return errors.Wrapf(err, "load integration %d", id)
//	}
//
//	return errors.WithDetail(err, "listing code: X1")
//
// Domain sentinels below are compared with errors.Is after any amount of wrapping.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// Operator-facing context
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates malformed input to an operation
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a concurrent writer changed the row first
	ErrConflict = New("resource conflict")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrSlotUnavailable is returned when no execution slot is free
	ErrSlotUnavailable = New("execution slot unavailable")

	// ErrLockHeld is returned when another owner holds an unexpired lock
	ErrLockHeld = New("lock held by another owner")

	// ErrInvalidFeed marks a feed document that cannot be parsed at all
	ErrInvalidFeed = New("invalid feed document")

	// ErrStorageUnavailable marks object storage failures that are not specific to one object
	ErrStorageUnavailable = New("object storage unavailable")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsCoordinationError reports whether err means the run must be deferred
// because another worker holds the integration.
func IsCoordinationError(err error) bool {
	return err != nil && IsAny(err, ErrSlotUnavailable, ErrLockHeld)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidRequest, format, args...)
}
