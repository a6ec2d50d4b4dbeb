package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewField(t *testing.T) {
	tests := []struct {
		expr string
		name string
		key  string
	}{
		{"TABLE_NAME", "table_name", "table_name"},
		{"`Table_Name`", "table_name", "table_name"},
		{"information_schema.tables.ENGINE", "engine", "engine"},
		{"DATA_TYPE AS `Type`", "Type", "data_type"},
		{"data_type as 'kind'", "kind", "data_type"},
		{"COUNT(*)", "COUNT(*)", "count(*)"},
		{"CAST(x AS CHAR)", "CAST(x AS CHAR)", "cast(x as char)"},
		{"CAST(x AS CHAR) AS c", "c", "cast(x as char)"},
		{"*", "*", "*"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f := NewField(tt.expr)
			assert.Equal(t, tt.expr, f.Expr)
			assert.Equal(t, tt.name, f.Name)
			assert.Equal(t, tt.key, f.Key)
		})
	}
}

func TestSplitFields(t *testing.T) {
	fields := SplitFields("DISTINCT a, COUNT(b, c), 'x,y' AS s")
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d: %v", len(fields), fields)
	}
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, "COUNT(b, c)", fields[1].Expr)
	assert.Equal(t, "s", fields[2].Name)
	assert.True(t, SplitFields("*")[0].IsStar())
}

func TestIndexKeywordSkipsNested(t *testing.T) {
	s := "a, (select b from c), 'from' from t"
	assert.Equal(t, 29, indexKeyword(s, "FROM"))
	assert.Equal(t, -1, indexKeyword("fromage", "FROM"))
}
