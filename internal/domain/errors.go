package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientShares is returned when a disposal exceeds the shares held.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInvalidInput is returned for values that fail domain validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedResponse is returned by upstream clients for payloads that
	// decode but do not contain usable data.
	ErrMalformedResponse = errors.New("malformed upstream response")
)
