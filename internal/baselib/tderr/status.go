// Package tderr implements the Status/error taxonomy described in spec §3
// and §7: a sum type carrying either success or a failure record
// {code, message, cause}, with codes in the 400-599 range mirroring HTTP
// semantics and code 0 reserved for internal/logic errors. It follows the
// teacher's layered error style (internal/db/sqlerrors.go): typed error
// structs with Unwrap, classified by helper predicates rather than string
// matching.
package tderr

import (
	"errors"
	"fmt"
)

// Status is a concrete error type carrying a numeric code, a human message,
// and an optional causing error. Error codes in 400-599 mirror HTTP
// semantics (caller errors 400-499, state/internal errors 500-599); code 0
// denotes an internal/logic error that should never reach a caller.
type Status struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (s *Status) Error() string {
	if s.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", s.Code, s.Message, s.Cause)
	}
	return fmt.Sprintf("[%d] %s", s.Code, s.Message)
}

// Unwrap exposes the causing error for errors.Is/errors.As chains.
func (s *Status) Unwrap() error {
	return s.Cause
}

// New creates a Status with the given code and message.
func New(code int, message string) *Status {
	return &Status{Code: code, Message: message}
}

// Newf creates a Status with a formatted message.
func Newf(code int, format string, args ...any) *Status {
	return &Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a Status with the given code and message, preserving cause
// for unwrapping.
func Wrap(code int, cause error, message string) *Status {
	return &Status{Code: code, Message: message, Cause: cause}
}

// Common caller-error (400 family) constructors, per spec §7.1.
func InvalidClientID() *Status {
	return New(400, "invalid or unknown client id")
}

func ZeroRequestID() *Status {
	return New(400, "request_id must be nonzero")
}

func BadRequest(format string, args ...any) *Status {
	return Newf(400, format, args...)
}

func NotSynchronous(constructorName string) *Status {
	return Newf(400, "request %q is not allowed in execute", constructorName)
}

func UnknownConstructor(hexID string) *Status {
	return Newf(400, "unknown constructor id 0x%s", hexID)
}

// Common state-error (500 family) constructors, per spec §7.2.
func ClientClosed() *Status {
	return New(500, "client instance is closed")
}

func Internal(format string, args ...any) *Status {
	return Newf(0, format, args...)
}

// Code returns the Status code of err if it is (or wraps) a *Status, or 0
// otherwise.
func Code(err error) int {
	var s *Status
	if errors.As(err, &s) {
		return s.Code
	}
	return 0
}

// IsCallerError returns true if err is a Status in the 400-499 range.
func IsCallerError(err error) bool {
	c := Code(err)
	return c >= 400 && c < 500
}

// IsStateError returns true if err is a Status in the 500-599 range.
func IsStateError(err error) bool {
	c := Code(err)
	return c >= 500 && c < 600
}
