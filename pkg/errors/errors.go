// Package errors defines the coded errors shared by the deploader packages.
//
// Every failure that crosses a package boundary carries a [Code]. The loader
// uses the code to decide whether a failure only skips one source or
// repository, or aborts the whole pass ([IsFatal]). The CLI prints
// [UserMessage] without the code prefix.
//
//	err := errors.New(errors.ErrCodeUnresolvable, "failed to download %s", coord)
//	if errors.IsFatal(err) {
//	    return err
//	}
//
// Causes are kept for errors.Is/As from the standard library:
//
//	err := errors.Wrap(errors.ErrCodeInvalidManifest, jsonErr, "parse %s", source)
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidManifest   Code = "INVALID_MANIFEST"
	ErrCodeInvalidCoordinate Code = "INVALID_COORDINATE"
	ErrCodeInvalidPath       Code = "INVALID_PATH"

	// Repository lookups
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeNetwork          Code = "NETWORK_ERROR"
	ErrCodeChecksumMismatch Code = "CHECKSUM_MISMATCH"

	// Fatal for a loading pass
	ErrCodeDownloadsDisabled Code = "DOWNLOADS_DISABLED"
	ErrCodeUnresolvable      Code = "UNRESOLVABLE_ARTIFACT"
	ErrCodeRestartRequired   Code = "RESTART_REQUIRED"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is an error with a code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns err's message without the code prefix.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err aborts a whole loading pass rather than a
// single source or repository attempt.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeDownloadsDisabled, ErrCodeUnresolvable, ErrCodeRestartRequired:
		return true
	}
	return false
}
