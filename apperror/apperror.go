package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide between fixing the input,
// rendering "not found", or retrying.
type Kind string

const (
	KindInvalidWeight     Kind = "InvalidWeight"
	KindInvalidTransition Kind = "InvalidTransition"
	KindAmountMismatch    Kind = "AmountMismatch"
	KindAlreadyVerified   Kind = "AlreadyVerified"
	KindNotFound          Kind = "NotFound"
	KindUpstreamFailure   Kind = "UpstreamFailure"
	KindInvalid           Kind = "Invalid"
	KindForbidden         Kind = "Forbidden"
)

// Error is the structured error returned by the pricing, lifecycle and payment code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// InvalidWeight reports a weight below the minimum or not a finite number
func InvalidWeight(message string) *Error {
	return New(KindInvalidWeight, "INVALID_WEIGHT", message)
}

// InvalidTransition reports an illegal lifecycle move
func InvalidTransition(message string) *Error {
	return New(KindInvalidTransition, "INVALID_TRANSITION", message)
}

// AmountMismatch reports a payment amount that differs from the order total
func AmountMismatch(expected, got int64) *Error {
	return New(KindAmountMismatch, "AMOUNT_MISMATCH",
		fmt.Sprintf("Payment amount %d does not match order total %d", got, expected))
}

// AlreadyVerified reports a mutation attempted on a verified payment
func AlreadyVerified() *Error {
	return New(KindAlreadyVerified, "ALREADY_VERIFIED", "Payment has already been verified")
}

// NotFound reports a missing resource; code is e.g. ORDER_NOT_FOUND
func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

// Upstream wraps a persistence, storage or network failure from a collaborator
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstreamFailure, "UPSTREAM_FAILURE", message, err)
}

// Invalid reports a caller-correctable input problem
func Invalid(message string) *Error {
	return New(KindInvalid, "VALIDATION_ERROR", message)
}

// Forbidden reports an operation on a resource the caller does not own
func Forbidden(message string) *Error {
	return New(KindForbidden, "FORBIDDEN", message)
}

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err (or anything it wraps) is an *Error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may retry the operation unchanged.
// Only upstream failures qualify; validation errors never do.
func Retryable(err error) bool {
	return Is(err, KindUpstreamFailure)
}
