package evolution

import (
	"errors"
	"fmt"
)

var (
	// ErrUnimplemented is raised when a candidate variant lacks a capability.
	ErrUnimplemented = errors.New("unimplemented capability")
	// ErrInvalidConfig is returned for out of range engine settings.
	ErrInvalidConfig = errors.New("invalid evolution config")
	// ErrNilCandidate is returned when a population contains a nil entry.
	ErrNilCandidate = errors.New("nil candidate in population")
)

// Error carries the operation and component an evolution failure
// happened in, wrapping the underlying cause.
type Error struct {
	// Message describes the failure.
	Message string
	// Op is the engine operation, e.g. "darwin" or "evolve".
	Op string
	// Component is "engine", "candidate" or "config".
	Component string
	// Err is the wrapped cause.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = e.Component + ": " + e.Op
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}
	if prefix != "" {
		return prefix + ": " + msg
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the operation and returns e.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the component and returns e.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewErrorf creates an Error with a formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapErrorf wraps err with a formatted message. It returns nil if err is nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// AsError reports whether err is, or wraps, an *Error and returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
