package protocol

import (
	"context"
	"errors"
	"strings"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/query"
)

// ConvertToMySQLError converts any error to *MySQLError with appropriate MySQL error codes
func ConvertToMySQLError(err error) *MySQLError {
	if err == nil {
		return nil
	}

	var mysqlErr *MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr
	}

	// Statements with a backend reply never get here; the coordinator
	// returns that reply unchanged.
	var classErr *query.ClassificationError
	if errors.As(err, &classErr) {
		return NewMySQLError(ErrCodeParseError, SQLStateSyntax, classErr.Message)
	}

	var fatalErr *query.FatalRewriteError
	if errors.As(err, &fatalErr) {
		return NewMySQLError(ErrCodeUnknown, SQLStateGeneral, fatalErr.Error())
	}

	if errors.Is(err, context.Canceled) {
		return ErrQueryInterrupted()
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return NewMySQLError(ErrCodeUnknown, SQLStateGeneral, apiErr.Error())
	}

	return mapByMessage(err.Error())
}

// BackendError maps an error message the backend returned for a statement.
func BackendError(msg string) *MySQLError {
	return mapByMessage(msg)
}

func mapByMessage(msg string) *MySQLError {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unknown table"),
		strings.Contains(lower, "no such table"),
		strings.Contains(lower, "unknown local index"),
		strings.Contains(lower, "no such index"):
		return NewMySQLError(ErrCodeNoSuchTable, SQLStateNoSuchTable, msg)
	case strings.Contains(lower, "unknown column"),
		strings.Contains(lower, "no such column"),
		strings.Contains(lower, "no such filter attribute"):
		return NewMySQLError(ErrCodeBadField, SQLStateNoSuchCol, msg)
	case strings.Contains(lower, "syntax error"),
		strings.Contains(lower, "parse error"):
		return NewMySQLError(ErrCodeParseError, SQLStateSyntax, msg)
	case strings.Contains(lower, "unknown database"):
		return NewMySQLError(ErrCodeBadDB, SQLStateSyntax, msg)
	default:
		return NewMySQLError(ErrCodeUnknown, SQLStateGeneral, msg)
	}
}
