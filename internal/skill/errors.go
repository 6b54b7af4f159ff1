package skill

import "fmt"

type ErrorCode string

const (
	ErrorInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorUnknownIntent  ErrorCode = "UNKNOWN_INTENT"
	ErrorHandlerError   ErrorCode = "HANDLER_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("skill: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("skill: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
