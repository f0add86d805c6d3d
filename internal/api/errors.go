package api

import (
	"errors"
	"fmt"
)

// TransportError reports a failed HTTP exchange: a transport-level
// error (timeout, connection refused, DNS failure) or a non-2xx status.
// The crawl treats these as "zero results for this request" and moves
// on; there is no retry anywhere. A timeout is not distinguished from
// any other transport failure.
type TransportError struct {
	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport failure: %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport failure: %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a 2xx response whose body is not valid JSON of
// the expected shape.
type DecodeError struct {
	// URL is the request URL.
	URL string

	// Err is the underlying decoding error.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failure: %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// Query filter validation errors.
var (
	// ErrInvalidWindow is returned when the query window is not a
	// positive number of months.
	ErrInvalidWindow = errors.New("invalid window: must be a positive number of months")

	// ErrNoPermitTypes is returned when the filter selects no permit
	// types at all; such a query can never match anything.
	ErrNoPermitTypes = errors.New("no permit types selected")

	// ErrInvalidPermitType is returned when a permit type code is
	// negative. Codes are small non-negative integers.
	ErrInvalidPermitType = errors.New("invalid permit type code")
)

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
