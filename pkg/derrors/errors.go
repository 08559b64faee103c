// Package derrors provides the structured error taxonomy shared by every
// waypack component: recipe decoding, project composition, and dependency
// resolution all report failures through a single coded error type so
// callers can branch on Code rather than parsing messages.
package derrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Codes are stable across releases so
// tests and CLI exit-code mapping can depend on them.
type Code string

const (
	// General
	Unknown        Code = "UNKNOWN"
	Internal       Code = "INTERNAL"
	InvalidInput   Code = "INVALID_INPUT"
	NotFound       Code = "NOT_FOUND"
	AlreadyExists  Code = "ALREADY_EXISTS"
	PathOutsideWorkspace Code = "PATH_OUTSIDE_WORKSPACE"

	// Recipe / codec
	RecipeNotFound   Code = "RECIPE_NOT_FOUND"
	MalformedSyntax  Code = "MALFORMED_SYNTAX"
	UnknownAttribute Code = "UNKNOWN_ATTRIBUTE"
	InvalidValue     Code = "INVALID_VALUE"

	// Package / project
	UnknownConfiguration Code = "UNKNOWN_CONFIGURATION"
	UnknownBuildType     Code = "UNKNOWN_BUILD_TYPE"
	UnknownPackage       Code = "UNKNOWN_PACKAGE"
	UnknownVariable      Code = "UNKNOWN_VARIABLE"
	DependencyCycle      Code = "DEPENDENCY_CYCLE"
	NoValidConfiguration Code = "NO_VALID_CONFIGURATION"

	// Resolver
	UnresolvableConflict Code = "UNRESOLVABLE_CONFLICT"

	// SCM / cache / install
	SCMUnavailable          Code = "SCM_UNAVAILABLE"
	ConcurrentInstallTimeout Code = "CONCURRENT_INSTALL_TIMEOUT"
	CacheCorrupt            Code = "CACHE_CORRUPT"
	SelectionsVersionMismatch Code = "SELECTIONS_VERSION_MISMATCH"
)

// Error is a structured error carrying a stable Code, a human message,
// arbitrary diagnostic Details, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]interface{})}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Details: make(map[string]interface{})}
}

// Wrap attaches a code and message to an existing error. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Details: make(map[string]interface{}), Wrapped: err}
}

// Wrapf attaches a code and formatted message to an existing error.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Details: make(map[string]interface{}), Wrapped: err}
}

// WithDetail attaches a diagnostic key/value and returns the receiver for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails merges multiple diagnostic entries.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// Is reports whether err has the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the code of err, or Unknown if err is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// GetDetails returns the details of err, or nil if err is not an *Error.
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
