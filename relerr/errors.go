// Package relerr defines the error taxonomy used across the engine:
// Validation, Plausibility, Resource, Internal and Cancellation, per
// the error handling design. Each category is a distinct errors.Kind so
// callers can test membership with Kind.Is rather than string matching.
package relerr

import (
	"fmt"

	stderrors "errors"

	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrValidation covers wrong arity, missing column, bad role, or a
	// reference to a frame/pipeline that does not exist. The request
	// fails with no state change.
	ErrValidation = errors.NewKind("validation error: %s")

	// ErrPlausibility covers a target that is all-null, a column that is
	// all-NaN, infinite values where they are not allowed, or a join key
	// of an unexpected type. Raised at fit time; nothing is published.
	ErrPlausibility = errors.NewKind("plausibility error: %s")

	// ErrResource covers out-of-memory on scratch space, a full disk, or
	// a closed socket. Best-effort unwind; any acquired locks are
	// released on every path.
	ErrResource = errors.NewKind("resource error: %s")

	// ErrInternal covers broken invariants: inconsistent counts, a
	// non-finite sum(h+lambda). Fatal — the request fails and project
	// state stays at the last committed snapshot.
	ErrInternal = errors.NewKind("internal invariant violated: %s")

	// ErrCancelled is returned when the caller disconnects or cancels a
	// context mid-fit. Workers stop at the next checkpoint; nothing is
	// published.
	ErrCancelled = errors.NewKind("operation cancelled: %s")
)

// Validation formats msg/args and wraps it as a validation error.
func Validation(msg string, args ...interface{}) error {
	return ErrValidation.New(fmt.Sprintf(msg, args...))
}

// Plausibility formats msg/args and wraps it as a plausibility error.
func Plausibility(msg string, args ...interface{}) error {
	return ErrPlausibility.New(fmt.Sprintf(msg, args...))
}

// Internal formats msg/args and wraps it as an internal invariant
// violation. Reserved for bugs, not for user-triggerable conditions.
func Internal(msg string, args ...interface{}) error {
	return ErrInternal.New(fmt.Sprintf(msg, args...))
}

// WrapResource wraps an underlying error (OOM, disk, socket) as a
// resource error without losing the original cause's text.
func WrapResource(cause error) error {
	return ErrResource.Wrap(cause, cause.Error())
}

// WrapCancelled wraps context.Canceled (or an equivalent) as a
// cancellation error.
func WrapCancelled(cause error) error {
	return ErrCancelled.Wrap(cause, cause.Error())
}

// Is reports whether err belongs to the given taxonomy kind.
func Is(kind *errors.Kind, err error) bool {
	return kind.Is(err)
}

// As is a thin re-export of the standard library's errors.As so callers
// don't need to import both packages to unwrap a taxonomy error's cause.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
