package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierAdmits(t *testing.T) {
	c := NewClassifier("Manticore")

	tests := []struct {
		name  string
		req   Request
		admit bool
	}{
		{"information_schema tables", Request{Payload: "SELECT * FROM information_schema.tables"}, true},
		{"backticked segments", Request{Payload: "select table_name from `information_schema`.`columns`"}, true},
		{"spaces around dot", Request{Payload: "SELECT * FROM information_schema . triggers"}, true},
		{"mixed case", Request{Payload: "SeLeCt * FrOm INFORMATION_SCHEMA.Schemata"}, true},
		{"alias qualified", Request{Payload: "SELECT * FROM Manticore.products"}, true},
		{"alias backticked", Request{Payload: "SELECT * FROM `Manticore`.products"}, true},
		{"version", Request{Payload: "SELECT VERSION()"}, true},
		{"version with semicolon", Request{Payload: "select version() ;"}, true},
		{"recoverable error", Request{Payload: "SELECT * FROM products WHERE name LIKE 'a%'", Error: "unexpected LIKE"}, true},
		{"plain table", Request{Payload: "SELECT * FROM products"}, false},
		{"not a select", Request{Payload: "SHOW TABLES"}, false},
		{"insert into handled table", Request{Payload: "INSERT INTO information_schema.tables VALUES (1)"}, false},
		{"unrelated error", Request{Payload: "SELECT * FROM products", Error: "no such index"}, false},
		{"version with extra projection", Request{Payload: "SELECT VERSION(), 1"}, false},
		{"similar table name", Request{Payload: "SELECT * FROM information_schema.tables_extra"}, false},
		{"alias as column name", Request{Payload: "SELECT Manticore FROM products"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.admit, c.Admits(tt.req))
		})
	}
}

func TestClassifierCustomAlias(t *testing.T) {
	c := NewClassifier("search")
	assert.True(t, c.Admits(Request{Payload: "SELECT * FROM search.docs"}))
	assert.False(t, c.Admits(Request{Payload: "SELECT * FROM Manticore.docs"}))
	assert.Equal(t, "search", c.Alias())
}

func TestParseInformationSchemaVariants(t *testing.T) {
	c := NewClassifier("Manticore")

	payloads := []string{
		"SELECT DEFAULT_COLLATION_NAME as TEST FROM information_schema.schemata",
		"SELECT DEFAULT_COLLATION_NAME as TEST FROM `information_schema`.schemata",
		"SELECT DEFAULT_COLLATION_NAME as TEST FROM information_schema.`schemata`",
		"SELECT DEFAULT_COLLATION_NAME as TEST FROM `information_schema`.`schemata`",
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			stmt, err := c.Parse(Request{Payload: payload})
			require.NoError(t, err)
			assert.Equal(t, TableSchemata, stmt.Table)
			require.Len(t, stmt.Fields, 1)
			assert.Equal(t, "TEST", stmt.Fields[0].Name)
			assert.Equal(t, "default_collation_name", stmt.Fields[0].Key)
			assert.False(t, stmt.Prefixed)
		})
	}
}

func TestParseExtractsStructure(t *testing.T) {
	c := NewClassifier("Manticore")

	stmt, err := c.Parse(Request{
		Payload: "SELECT COLUMN_NAME, DATA_TYPE AS type,\n COUNT(a, b)\nFROM information_schema.COLUMNS\nWHERE TABLE_NAME = 'products' AND table_schema = 'Manticore'",
		Path:    "sql?mode=raw",
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COLUMN_NAME, DATA_TYPE AS type,  COUNT(a, b) FROM information_schema.COLUMNS WHERE TABLE_NAME = 'products' AND table_schema = 'Manticore'", stmt.Original)
	assert.Equal(t, TableColumns, stmt.Table)
	require.Len(t, stmt.Fields, 3)
	assert.Equal(t, "column_name", stmt.Fields[0].Name)
	assert.Equal(t, "type", stmt.Fields[1].Name)
	assert.Equal(t, "data_type", stmt.Fields[1].Key)
	assert.Equal(t, "COUNT(a, b)", stmt.Fields[2].Expr)
	assert.Equal(t, "COUNT(a, b)", stmt.Fields[2].Name)

	p, ok := stmt.Predicate("table_name")
	require.True(t, ok)
	assert.Equal(t, Predicate{Column: "TABLE_NAME", Operator: "=", Value: "products", Quoted: true}, p)
	assert.Equal(t, "sql?mode=raw", stmt.Request.Path)
}

func TestParseStripsAliasPrefix(t *testing.T) {
	c := NewClassifier("Manticore")

	stmt, err := c.Parse(Request{Payload: "SELECT id FROM `Manticore`.`Products` WHERE id IN (1, 2)"})
	require.NoError(t, err)
	assert.Equal(t, "products", stmt.Table)
	assert.True(t, stmt.Prefixed)

	p, ok := stmt.Predicate("ID")
	require.True(t, ok)
	assert.Equal(t, "IN", p.Operator)
	assert.Equal(t, "1, 2", p.Value)
	assert.Equal(t, []string{"1", "2"}, p.ListValues())
}

func TestParseFunctionCallWithoutTable(t *testing.T) {
	c := NewClassifier("Manticore")

	stmt, err := c.Parse(Request{Payload: "SELECT version()"})
	require.NoError(t, err)
	assert.False(t, stmt.HasTable())
	require.Len(t, stmt.Fields, 1)
	assert.Equal(t, "version()", stmt.Fields[0].Key)
}

func TestParseRejects(t *testing.T) {
	c := NewClassifier("Manticore")

	tests := []struct {
		name string
		req  Request
	}{
		{"not a select", Request{Payload: "DELETE FROM products"}},
		{"literal without table", Request{Payload: "SELECT 1"}},
		{"unhandled table", Request{Payload: "SELECT * FROM products"}},
		{"subquery in from", Request{Payload: "SELECT * FROM (SELECT 1) t"}},
		{"unrelated error", Request{Payload: "SELECT * FROM products", Error: "index products: no such index"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Parse(tt.req)
			require.Error(t, err)
			assert.True(t, IsClassificationError(err))
			assert.Equal(t, ClassificationMessage, err.Error())

			var ce *ClassificationError
			require.ErrorAs(t, err, &ce)
			assert.True(t, ce.Passthrough)
		})
	}
}

func TestParseAcceptsRecoverableError(t *testing.T) {
	c := NewClassifier("Manticore")

	stmt, err := c.Parse(Request{
		Payload: "SELECT * FROM products WHERE title LIKE 'abc%'",
		Error:   "P01: syntax error, unexpected LIKE near 'LIKE 'abc%''",
	})
	require.NoError(t, err)
	assert.Equal(t, "products", stmt.Table)

	p, ok := stmt.Predicate("title")
	require.True(t, ok)
	assert.Equal(t, "LIKE", p.Operator)
	assert.Equal(t, "abc%", p.Value)
}

func TestParseTopLevelFrom(t *testing.T) {
	c := NewClassifier("Manticore")

	stmt, err := c.Parse(Request{Payload: "SELECT (SELECT 1 FROM x) AS one, 'from' AS f FROM information_schema.tables"})
	require.NoError(t, err)
	assert.Equal(t, TableTables, stmt.Table)
	require.Len(t, stmt.Fields, 2)
	assert.Equal(t, "one", stmt.Fields[0].Name)
	assert.Equal(t, "f", stmt.Fields[1].Name)
}
