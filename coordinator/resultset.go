package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/protocol"
)

// ToResultSet converts a backend reply into a MySQL result set. A reply
// carrying a backend error becomes a MySQL error; a reply without columns
// becomes an OK packet.
func ToResultSet(res backend.Result) (*protocol.ResultSet, error) {
	if msg := res.ErrorMessage(); msg != "" {
		return nil, protocol.BackendError(msg)
	}

	set := res.First()
	if len(set.Columns) == 0 {
		return &protocol.ResultSet{RowsAffected: set.Total}, nil
	}

	rs := &protocol.ResultSet{
		Columns: make([]protocol.ColumnDef, len(set.Columns)),
		Rows:    make([][]interface{}, 0, len(set.Data)),
	}
	for i, col := range set.Columns {
		rs.Columns[i] = protocol.ColumnDef{Name: col.Name, Type: mysqlType(col.Type)}
	}
	for _, row := range set.Data {
		values := make([]interface{}, len(set.Columns))
		for i, col := range set.Columns {
			values[i] = wireValue(row[col.Name])
		}
		rs.Rows = append(rs.Rows, values)
	}
	return rs, nil
}

// mysqlType maps backend column type tags onto MySQL column types
func mysqlType(typ string) byte {
	switch strings.ToLower(typ) {
	case "long", "uint", "int", "bool", "timestamp":
		return protocol.TypeLong
	case "long long", "bigint":
		return protocol.TypeLongLong
	case "float":
		return protocol.TypeFloat
	case "double":
		return protocol.TypeDouble
	default:
		return protocol.TypeVarString
	}
}

func wireValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string, json.Number:
		return val
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return val
	}
}
