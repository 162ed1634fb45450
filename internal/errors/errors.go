package errors

import (
	stderrors "errors"
	"fmt"
)

// WidgetError carries a code alongside a user-displayable message.
type WidgetError struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *WidgetError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause.
func (e *WidgetError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a WidgetError with a code and message.
func New(code Code, message string) *WidgetError {
	return &WidgetError{Code: code, Message: message}
}

// Newf creates a WidgetError with a formatted message.
func Newf(code Code, format string, args ...any) *WidgetError {
	return &WidgetError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message. It returns nil when err is nil.
// The return type is error, not *WidgetError, so callers forwarding the
// result never hand out a non-nil interface around a nil pointer.
func Wrap(code Code, message string, err error) error {
	if err == nil {
		return nil
	}
	return &WidgetError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	var werr *WidgetError
	if stderrors.As(err, &werr) {
		return werr.Code
	}
	return CodeUnknown
}

// MessageOf returns the displayable message for err. Errors without a widget
// code fall back to their Error string.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var werr *WidgetError
	if stderrors.As(err, &werr) {
		return werr.Message
	}
	return err.Error()
}
