package protocol

import (
	"strings"

	"github.com/infobridge/infobridge/query"
)

// SystemVarConfig configures system variable responses
type SystemVarConfig struct {
	ServerVersion  string
	VersionComment string
	ConnID         uint64
	CurrentDB      string
	User           string
}

// SystemVariablesResult answers a SELECT of system variables and session
// functions with a single row.
func SystemVariablesResult(fields []query.Field, config SystemVarConfig) *ResultSet {
	columns := make([]ColumnDef, 0, len(fields))
	values := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, ColumnDef{Name: f.Name, Type: TypeVarString})
		values = append(values, SystemVariableValue(systemVariableName(f), config))
	}
	return &ResultSet{
		Columns: columns,
		Rows:    [][]interface{}{values},
	}
}

// systemVariableName normalizes a projected expression: "@@session.sql_mode"
// becomes "SESSION.SQL_MODE", "database( )" becomes "DATABASE()".
func systemVariableName(f query.Field) string {
	body := f.Expr
	if i := query.IndexKeyword(body, "AS"); i > 0 {
		body = body[:i]
	}
	name := strings.Join(strings.Fields(body), "")
	name = strings.ReplaceAll(name, "`", "")
	return strings.ToUpper(strings.TrimPrefix(name, "@@"))
}

// SystemVariableValue returns value for a normalized variable name (e.g., "VERSION", "DATABASE()")
func SystemVariableValue(varName string, config SystemVarConfig) interface{} {
	switch strings.ToUpper(varName) {
	case "VERSION", "GLOBAL.VERSION":
		if config.ServerVersion != "" {
			return config.ServerVersion
		}
		return DefaultServerVersion
	case "VERSION_COMMENT", "GLOBAL.VERSION_COMMENT":
		if config.VersionComment != "" {
			return config.VersionComment
		}
		return "infobridge"
	case "DATABASE()", "SCHEMA()":
		if config.CurrentDB == "" {
			return nil
		}
		return config.CurrentDB
	case "AUTOCOMMIT", "SESSION.AUTOCOMMIT":
		return 1
	case "AUTO_INCREMENT_INCREMENT", "SESSION.AUTO_INCREMENT_INCREMENT":
		return 1
	case "SQL_MODE", "SESSION.SQL_MODE", "GLOBAL.SQL_MODE":
		return ""
	case "TX_ISOLATION", "SESSION.TX_ISOLATION", "TRANSACTION_ISOLATION",
		"SESSION.TRANSACTION_ISOLATION", "GLOBAL.TRANSACTION_ISOLATION":
		return "REPEATABLE-READ"
	case "CHARACTER_SET_CLIENT", "CHARACTER_SET_CONNECTION",
		"CHARACTER_SET_RESULTS", "CHARACTER_SET_SERVER",
		"SESSION.CHARACTER_SET_CLIENT", "SESSION.CHARACTER_SET_CONNECTION",
		"SESSION.CHARACTER_SET_RESULTS":
		return "utf8mb4"
	case "COLLATION_CONNECTION", "COLLATION_SERVER", "SESSION.COLLATION_CONNECTION":
		return "utf8mb4_general_ci"
	case "TIME_ZONE", "SESSION.TIME_ZONE":
		return "SYSTEM"
	case "SYSTEM_TIME_ZONE":
		return "UTC"
	case "INTERACTIVE_TIMEOUT", "WAIT_TIMEOUT", "SESSION.WAIT_TIMEOUT", "SESSION.INTERACTIVE_TIMEOUT":
		return 28800
	case "NET_WRITE_TIMEOUT", "SESSION.NET_WRITE_TIMEOUT":
		return 60
	case "NET_READ_TIMEOUT", "SESSION.NET_READ_TIMEOUT":
		return 30
	case "MAX_ALLOWED_PACKET", "SESSION.MAX_ALLOWED_PACKET", "GLOBAL.MAX_ALLOWED_PACKET":
		return 67108864
	case "NET_BUFFER_LENGTH":
		return 16384
	case "LOWER_CASE_TABLE_NAMES":
		return 0
	case "TX_READ_ONLY", "SESSION.TX_READ_ONLY", "TRANSACTION_READ_ONLY",
		"SESSION.TRANSACTION_READ_ONLY", "READ_ONLY", "GLOBAL.READ_ONLY":
		return 0
	case "PERFORMANCE_SCHEMA", "GLOBAL.PERFORMANCE_SCHEMA":
		return 0
	case "QUERY_CACHE_SIZE":
		return 0
	case "QUERY_CACHE_TYPE":
		return "OFF"
	case "INIT_CONNECT":
		return ""
	case "SERVER_ID":
		return 1
	case "PSEUDO_THREAD_ID", "SESSION.PSEUDO_THREAD_ID", "CONNECTION_ID()":
		return config.ConnID
	case "GTID_MODE", "GLOBAL.GTID_MODE":
		return "OFF"
	case "HAVE_OPENSSL", "HAVE_SSL":
		return "DISABLED"
	case "USER()", "CURRENT_USER()", "SESSION_USER()", "SYSTEM_USER()":
		user := config.User
		if user == "" {
			user = "root"
		}
		return user + "@localhost"
	default:
		// Unknown variable
		return ""
	}
}
