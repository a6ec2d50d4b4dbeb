package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name      string
		err       string
		statement string
		want      bool
	}{
		{"empty error", "", "SELECT 1", false},
		{"string filter", "unsupported filter type 'string' on attribute 'title'", "SELECT * FROM t", true},
		{"stringlist filter", "unsupported filter type 'stringlist' on attribute 'tags'", "SELECT * FROM t", true},
		{"like", "P01: syntax error, unexpected LIKE near", "SELECT * FROM t", true},
		{"paren", "unexpected '(' near '(title, '')", "SELECT * FROM t", true},
		{"distinct", "syntax error, unexpected identifier, expecting DISTINCT or '*' near 'x'", "SELECT x FROM t", true},
		{"identifier with date", "unexpected identifier, expecting ',' or ')' near 'ts'", "SELECT DATE(ts) FROM t", true},
		{"identifier with quarter", "unexpected identifier, expecting ',' or ')' near 'ts'", "SELECT QUARTER(ts) FROM t", true},
		{"identifier without date", "unexpected identifier, expecting ',' or ')' near 'ts'", "SELECT a b FROM t", false},
		{"unknown", "no such index", "SELECT * FROM t", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecoverable(tt.err, tt.statement))
		})
	}
}

func TestAlwaysEmptyTablesAreHandled(t *testing.T) {
	for table := range emptyTables {
		assert.True(t, IsHandledTable(table), table)
		assert.True(t, IsAlwaysEmpty(table), table)
	}
	assert.False(t, IsAlwaysEmpty(TableTables))
	assert.False(t, IsAlwaysEmpty(TableColumns))
}
