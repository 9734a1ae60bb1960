package functions

import (
	"context"
	"errors"
	"fmt"

	"github.com/ggoodman/appfunctions-go/appfunctiondata"
)

// ErrorCode identifies why an execution failed. Codes are grouped by
// category: 1xxx request errors, 2xxx system errors, 3xxx app errors.
type ErrorCode int

const (
	CodeDenied                     ErrorCode = 1000
	CodeInvalidArgument            ErrorCode = 1001
	CodeDisabled                   ErrorCode = 1002
	CodeFunctionNotFound           ErrorCode = 1003
	CodeResourceNotFound           ErrorCode = 1500
	CodeLimitExceeded              ErrorCode = 1501
	CodeResourceAlreadyExists      ErrorCode = 1502
	CodeSystemError                ErrorCode = 2000
	CodeCancelled                  ErrorCode = 2001
	CodeEnterprisePolicyDisallowed ErrorCode = 2002
	CodeAppUnknownError            ErrorCode = 3000
)

var codeNames = map[ErrorCode]string{
	CodeDenied:                     "denied",
	CodeInvalidArgument:            "invalid_argument",
	CodeDisabled:                   "disabled",
	CodeFunctionNotFound:           "function_not_found",
	CodeResourceNotFound:           "resource_not_found",
	CodeLimitExceeded:              "limit_exceeded",
	CodeResourceAlreadyExists:      "resource_already_exists",
	CodeSystemError:                "system_error",
	CodeCancelled:                  "cancelled",
	CodeEnterprisePolicyDisallowed: "enterprise_policy_disallowed",
	CodeAppUnknownError:            "app_unknown_error",
}

func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Category groups error codes by the party responsible for the failure.
type Category int

const (
	CategoryUnknown Category = iota
	// CategoryRequest errors are caused by the caller.
	CategoryRequest
	// CategorySystem errors are caused by the host.
	CategorySystem
	// CategoryApp errors are caused by the function implementation.
	CategoryApp
)

func (c Category) String() string {
	switch c {
	case CategoryRequest:
		return "request"
	case CategorySystem:
		return "system"
	case CategoryApp:
		return "app"
	default:
		return "unknown"
	}
}

// Category returns the category c belongs to.
func (c ErrorCode) Category() Category {
	switch {
	case c >= 1000 && c < 2000:
		return CategoryRequest
	case c >= 2000 && c < 3000:
		return CategorySystem
	case c >= 3000 && c < 4000:
		return CategoryApp
	default:
		return CategoryUnknown
	}
}

// Error is the failure type returned by Execute and by handlers that want to
// report a specific code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError returns an Error with the given code and message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("appfunctions: %s (%d): %s", e.Code, int(e.Code), msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Category is shorthand for e.Code.Category().
func (e *Error) Category() Category { return e.Code.Category() }

// AsError converts err into an *Error. Existing *Error values are returned
// as is; context cancellation maps to CodeCancelled, container validation
// failures to CodeInvalidArgument and everything else to fallback.
func AsError(err error, fallback ErrorCode) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeCancelled, Err: err}
	case errors.Is(err, appfunctiondata.ErrInvalidArgument):
		return &Error{Code: CodeInvalidArgument, Err: err}
	default:
		return &Error{Code: fallback, Err: err}
	}
}
