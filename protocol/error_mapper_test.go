package protocol

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/query"
)

func TestConvertToMySQLError_Nil(t *testing.T) {
	result := ConvertToMySQLError(nil)
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestConvertToMySQLError_PassthroughMySQLError(t *testing.T) {
	original := NewMySQLError(1234, "ABCDE", "test message")
	result := ConvertToMySQLError(original)
	if result != original {
		t.Errorf("expected same MySQLError instance to be returned")
	}
	if result.Code != 1234 || result.SQLState != "ABCDE" || result.Message != "test message" {
		t.Errorf("MySQLError fields changed unexpectedly")
	}
}

func TestConvertToMySQLError_WrappedMySQLError(t *testing.T) {
	original := NewMySQLError(ErrCodeBadDB, SQLStateSyntax, "no db")
	result := ConvertToMySQLError(fmt.Errorf("use: %w", original))
	if result != original {
		t.Errorf("expected wrapped MySQLError to be unwrapped")
	}
}

func TestConvertToMySQLError_Typed(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     uint16
		wantSQLState string
		wantMessage  string
	}{
		{
			name:         "classification error",
			err:          query.NewClassificationError("not a select"),
			wantCode:     ErrCodeParseError,
			wantSQLState: SQLStateSyntax,
			wantMessage:  query.ClassificationMessage,
		},
		{
			name:         "fatal rewrite error",
			err:          query.NewFatalRewriteError("unsupported method %s", "foo()"),
			wantCode:     ErrCodeUnknown,
			wantSQLState: SQLStateGeneral,
			wantMessage:  "failed to rewrite select query: unsupported method foo()",
		},
		{
			name:         "context canceled",
			err:          fmt.Errorf("send: %w", context.Canceled),
			wantCode:     ErrCodeQueryInterrupted,
			wantSQLState: SQLStateInterrupted,
			wantMessage:  "Query execution was interrupted",
		},
		{
			name:         "backend transport error",
			err:          &backend.APIError{Code: 502, Message: "backend unavailable", Err: errors.New("connection refused")},
			wantCode:     ErrCodeUnknown,
			wantSQLState: SQLStateGeneral,
			wantMessage:  "backend unavailable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToMySQLError(tt.err)
			if result.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", result.Code, tt.wantCode)
			}
			if result.SQLState != tt.wantSQLState {
				t.Errorf("SQLState = %s, want %s", result.SQLState, tt.wantSQLState)
			}
			if result.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", result.Message, tt.wantMessage)
			}
		})
	}
}

func TestBackendError_ByMessage(t *testing.T) {
	tests := []struct {
		msg          string
		wantCode     uint16
		wantSQLState string
	}{
		{"unknown table 'foo' in search request", ErrCodeNoSuchTable, SQLStateNoSuchTable},
		{"no such table: foo", ErrCodeNoSuchTable, SQLStateNoSuchTable},
		{"unknown local index(es) 'foo' in search request", ErrCodeNoSuchTable, SQLStateNoSuchTable},
		{"index products: no such filter attribute 'price'", ErrCodeBadField, SQLStateNoSuchCol},
		{"Unknown column 'price'", ErrCodeBadField, SQLStateNoSuchCol},
		{"P01: syntax error, unexpected identifier near 'SELEC'", ErrCodeParseError, SQLStateSyntax},
		{"sphinxql: parse error at 'x'", ErrCodeParseError, SQLStateSyntax},
		{"Unknown database 'nope'", ErrCodeBadDB, SQLStateSyntax},
		{"something else went wrong", ErrCodeUnknown, SQLStateGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			result := BackendError(tt.msg)
			if result.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", result.Code, tt.wantCode)
			}
			if result.SQLState != tt.wantSQLState {
				t.Errorf("SQLState = %s, want %s", result.SQLState, tt.wantSQLState)
			}
			if result.Message != tt.msg {
				t.Errorf("Message = %q, want %q", result.Message, tt.msg)
			}
		})
	}
}

func TestMySQLError_Error(t *testing.T) {
	err := NewMySQLError(ErrCodeNoSuchTable, SQLStateNoSuchTable, "unknown table 'x'")
	want := "ERROR 1146 (42S02): unknown table 'x'"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
