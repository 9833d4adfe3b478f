package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// FailureReason tags why a lookup against an upstream source did not
// produce a value.
type FailureReason string

const (
	FailureNone      FailureReason = ""
	FailureTimeout   FailureReason = "timeout"
	FailureNetwork   FailureReason = "network"
	FailureStatus    FailureReason = "bad_status"
	FailureMalformed FailureReason = "malformed"
	FailureMissing   FailureReason = "missing"
	FailureInvalid   FailureReason = "invalid"
)

// Result is either a value or a tagged failure. Upstream clients return it so
// callers can decide where the fallback policy applies and tests can assert
// on the reason instead of only the final number.
type Result[T any] struct {
	Value  T
	Reason FailureReason
	Err    error
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail builds a failed result. A nil err is replaced with one naming the reason.
func Fail[T any](reason FailureReason, err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("upstream lookup failed: %s", reason)
	}
	return Result[T]{Reason: reason, Err: err}
}

// FailWith classifies err and builds a failed result.
func FailWith[T any](err error) Result[T] {
	return Fail[T](Classify(err), err)
}

// Ok reports whether the result carries a value.
func (r Result[T]) Ok() bool {
	return r.Reason == FailureNone && r.Err == nil
}

// OrElse returns the value, or def if the result failed.
func (r Result[T]) OrElse(def T) T {
	if r.Ok() {
		return r.Value
	}
	return def
}

// StatusError is returned by HTTP clients for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// MissingError is returned when an upstream answered but had no data for the key.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("no data for %s", e.Key)
}

// Classify maps an error from an upstream call to a FailureReason.
func Classify(err error) FailureReason {
	if err == nil {
		return FailureNone
	}

	var statusErr *StatusError
	var missingErr *MissingError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.As(err, &statusErr):
		return FailureStatus
	case errors.As(err, &missingErr):
		return FailureMissing
	case errors.Is(err, ErrInvalidInput):
		return FailureInvalid
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	case errors.As(err, &netErr) && netErr.Timeout():
		return FailureTimeout
	default:
		return FailureNetwork
	}
}
