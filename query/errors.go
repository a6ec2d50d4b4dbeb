package query

import (
	"errors"
	"fmt"
)

// ClassificationMessage is the fixed text every ClassificationError carries.
const ClassificationMessage = "Failed to handle your select query"

// ClassificationError means the statement is not one the engine handles.
// Callers forward the statement, or the backend's own reply, untouched.
type ClassificationError struct {
	Message     string
	Passthrough bool
	Reason      string
}

func (e *ClassificationError) Error() string {
	return e.Message
}

// NewClassificationError returns a passthrough ClassificationError.
// reason is kept for debug logging only.
func NewClassificationError(reason string) *ClassificationError {
	return &ClassificationError{
		Message:     ClassificationMessage,
		Passthrough: true,
		Reason:      reason,
	}
}

// IsClassificationError reports whether err is, or wraps, a ClassificationError.
func IsClassificationError(err error) bool {
	var ce *ClassificationError
	return errors.As(err, &ce)
}

// FatalRewriteError means a statement was claimed but could not be turned
// into something the backend accepts.
type FatalRewriteError struct {
	Reason string
}

func (e *FatalRewriteError) Error() string {
	return "failed to rewrite select query: " + e.Reason
}

// NewFatalRewriteError formats a FatalRewriteError.
func NewFatalRewriteError(format string, args ...interface{}) *FatalRewriteError {
	return &FatalRewriteError{Reason: fmt.Sprintf(format, args...)}
}

// IsFatalRewriteError reports whether err is, or wraps, a FatalRewriteError.
func IsFatalRewriteError(err error) bool {
	var fe *FatalRewriteError
	return errors.As(err, &fe)
}
