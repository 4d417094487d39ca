// Package stream implements the analysis progress-stream consumer: an HTTP
// chunk source, an incremental UTF-8 decoder, a line framer, and the session
// state machine that turns raw body chunks into ordered progress snapshots
// and a single terminal outcome.
package stream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies stream consumption errors.
type ErrorKind int

const (
	// ErrorTransport indicates a connection, status, or mid-stream read
	// failure before any terminal event.
	ErrorTransport ErrorKind = iota
	// ErrorMalformedEncoding indicates undecodable trailing bytes at
	// end-of-stream.
	ErrorMalformedEncoding
	// ErrorMalformedFrame indicates an event record whose payload is not
	// valid JSON. Recovered locally, never fatal on its own.
	ErrorMalformedFrame
	// ErrorProtocolViolation indicates the stream ended while streaming with
	// no terminal event.
	ErrorProtocolViolation
)

// Error represents a stream consumption error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal returns true if this error settles the session.
// Malformed frames are skipped; everything else is terminal.
func (e *Error) IsFatal() bool {
	return e.Kind != ErrorMalformedFrame
}

// kindOf extracts the ErrorKind from err, or -1 if err is not a stream Error.
func kindOf(err error) ErrorKind {
	var streamErr *Error
	if errors.As(err, &streamErr) {
		return streamErr.Kind
	}
	return -1
}

// IsTransport returns true if the error is a transport failure.
func IsTransport(err error) bool { return kindOf(err) == ErrorTransport }

// IsMalformedEncoding returns true if the error is an encoding failure.
func IsMalformedEncoding(err error) bool { return kindOf(err) == ErrorMalformedEncoding }

// IsMalformedFrame returns true if the error is a skippable frame failure.
func IsMalformedFrame(err error) bool { return kindOf(err) == ErrorMalformedFrame }

// IsProtocolViolation returns true if the error is a protocol violation.
func IsProtocolViolation(err error) bool { return kindOf(err) == ErrorProtocolViolation }

// StatusError is returned by the chunk source for non-2xx responses.
// Wrapping the status code lets callers distinguish refusal classes without
// string matching.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}
