// Package errors provides structured error handling for chunkpool
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal errors, including aborted traversals
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeInvalidParam represents bad arguments such as a non-positive chunk size
	ErrorTypeInvalidParam ErrorType = "invalid_param"
	// ErrorTypeOutOfMemory represents a failed chunk allocation
	ErrorTypeOutOfMemory ErrorType = "out_of_memory"
	// ErrorTypeNotFound represents an address, handle or tag the pool does not own
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeDoubleFree represents a release of an already free slot
	ErrorTypeDoubleFree ErrorType = "double_free"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type. It lets callers
// match against the exported sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is matching; they carry only a type.
var (
	ErrInvalidParam = &Error{Type: ErrorTypeInvalidParam}
	ErrOutOfMemory  = &Error{Type: ErrorTypeOutOfMemory}
	ErrNotFound     = &Error{Type: ErrorTypeNotFound}
	ErrDoubleFree   = &Error{Type: ErrorTypeDoubleFree}
)

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether any *Error in err's chain has the given type. A
// wrapper such as an aborted traversal keeps the type of its cause visible.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsInvalidParam reports whether err is an InvalidParam error
func IsInvalidParam(err error) bool { return IsType(err, ErrorTypeInvalidParam) }

// IsOutOfMemory reports whether err is an OutOfMemory error
func IsOutOfMemory(err error) bool { return IsType(err, ErrorTypeOutOfMemory) }

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsDoubleFree reports whether err is a DoubleFree error
func IsDoubleFree(err error) bool { return IsType(err, ErrorTypeDoubleFree) }

// IsRecoverable returns true if the pool state is intact and the caller may
// carry on after fixing its own logic. Only OutOfMemory is treated as fatal,
// wherever it sits in the chain.
func IsRecoverable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return !IsOutOfMemory(err)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
