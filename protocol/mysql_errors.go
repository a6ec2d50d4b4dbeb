package protocol

import "fmt"

// MySQL error codes returned to clients
const (
	ErrCodeTooManyConnections uint16 = 1040
	ErrCodeHandshake          uint16 = 1043
	ErrCodeUnknownCommand     uint16 = 1047
	ErrCodeBadDB              uint16 = 1049
	ErrCodeBadField           uint16 = 1054
	ErrCodeParseError         uint16 = 1064
	ErrCodeUnknown            uint16 = 1105
	ErrCodeNoSuchTable        uint16 = 1146
	ErrCodeQueryInterrupted   uint16 = 1317
)

// SQLSTATE values paired with the codes above
const (
	SQLStateGeneral     = "HY000"
	SQLStateSyntax      = "42000"
	SQLStateNoSuchTable = "42S02"
	SQLStateNoSuchCol   = "42S22"
	SQLStateConnection  = "08004"
	SQLStateHandshake   = "08S01"
	SQLStateInterrupted = "70100"
)

// MySQLError represents a MySQL protocol error with error code and SQLSTATE
type MySQLError struct {
	Code     uint16
	SQLState string
	Message  string
}

func (e *MySQLError) Error() string {
	return fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.SQLState, e.Message)
}

// NewMySQLError creates a new MySQL error
func NewMySQLError(code uint16, sqlState, message string) *MySQLError {
	return &MySQLError{
		Code:     code,
		SQLState: sqlState,
		Message:  message,
	}
}

// ErrTooManyConnections returns error 1040, sent instead of the handshake
// when the connection limit is reached
func ErrTooManyConnections() *MySQLError {
	return NewMySQLError(ErrCodeTooManyConnections, SQLStateConnection, "Too many connections")
}

// ErrQueryInterrupted returns error 1317, used when the server shuts down
// while a statement is in flight
func ErrQueryInterrupted() *MySQLError {
	return NewMySQLError(ErrCodeQueryInterrupted, SQLStateInterrupted, "Query execution was interrupted")
}
