package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewritePredicates(t *testing.T) {
	types := map[string]string{
		"id":    "bigint",
		"price": "uint",
		"title": "string",
		"meta":  "json",
		"body":  "text",
	}

	tests := []struct {
		name    string
		sql     string
		want    string
		regex   []string
		changed int
	}{
		{
			name:    "quoted integer",
			sql:     "SELECT * FROM t WHERE id = '5'",
			want:    "SELECT * FROM t WHERE id = 5",
			changed: 1,
		},
		{
			name:    "in list",
			sql:     "SELECT * FROM t WHERE id IN ('1','2', 3)",
			want:    "SELECT * FROM t WHERE id IN (1, 2, 3)",
			changed: 1,
		},
		{
			name: "non numeric literal stays quoted",
			sql:  "SELECT * FROM t WHERE price = 'abc'",
			want: "SELECT * FROM t WHERE price = 'abc'",
		},
		{
			name:    "like on string",
			sql:     "SELECT * FROM t WHERE title LIKE 'abc%'",
			want:    "SELECT REGEX(title, '^abc.*$') AS title__regex, * FROM t WHERE title__regex = 1",
			regex:   []string{"title__regex"},
			changed: 1,
		},
		{
			name:    "not like on json",
			sql:     "select id from t where meta NOT LIKE '%x%'",
			want:    "select REGEX(meta, '^.*x.*$') AS meta__regex, id from t where meta__regex = 0",
			regex:   []string{"meta__regex"},
			changed: 1,
		},
		{
			name: "equality on string untouched",
			sql:  "SELECT * FROM t WHERE title = 'x'",
			want: "SELECT * FROM t WHERE title = 'x'",
		},
		{
			name: "unknown type untouched",
			sql:  "SELECT * FROM t WHERE body LIKE 'x%'",
			want: "SELECT * FROM t WHERE body LIKE 'x%'",
		},
		{
			name: "column not in schema",
			sql:  "SELECT * FROM t WHERE other = '5'",
			want: "SELECT * FROM t WHERE other = '5'",
		},
		{
			name:    "like after distinct",
			sql:     "SELECT DISTINCT brand FROM t WHERE title LIKE 'a%'",
			want:    "SELECT DISTINCT REGEX(title, '^a.*$') AS title__regex, brand FROM t WHERE title__regex = 1",
			regex:   []string{"title__regex"},
			changed: 1,
		},
		{
			name:    "like after stacked modifiers",
			sql:     "select sql_no_cache distinct brand from t where title like 'a%'",
			want:    "select sql_no_cache distinct REGEX(title, '^a.*$') AS title__regex, brand from t where title__regex = 1",
			regex:   []string{"title__regex"},
			changed: 1,
		},
		{
			name:    "predicate inside string untouched",
			sql:     `SELECT * FROM t WHERE MATCH("id = '5'") AND id = '6'`,
			want:    `SELECT * FROM t WHERE MATCH("id = '5'") AND id = 6`,
			changed: 1,
		},
		{
			name: "projection is not touched",
			sql:  "SELECT id = '5' AS flag FROM t",
			want: "SELECT id = '5' AS flag FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RewritePredicates(tt.sql, types)
			assert.Equal(t, tt.want, got.SQL)
			assert.Equal(t, tt.regex, got.RegexColumns)
			assert.Equal(t, tt.changed, got.Rewritten)
		})
	}
}

func TestRewritePredicatesRepeatedLike(t *testing.T) {
	got := RewritePredicates(
		"SELECT * FROM t WHERE title LIKE 'a%' OR title LIKE 'b%'",
		map[string]string{"title": "string"},
	)
	assert.Equal(t, []string{"title__regex", "title_2__regex"}, got.RegexColumns)
	assert.Equal(t,
		"SELECT REGEX(title, '^a.*$') AS title__regex, REGEX(title, '^b.*$') AS title_2__regex, * FROM t WHERE title__regex = 1 OR title_2__regex = 1",
		got.SQL)
}

func TestRewritePredicatesNumericIdempotent(t *testing.T) {
	types := map[string]string{"id": "bigint"}

	tests := []struct {
		name    string
		quoted  string
		bare    string
		changed int
	}{
		{"spaced equality", "SELECT * FROM t WHERE id = '5'", "SELECT * FROM t WHERE id = 5", 1},
		{"unspaced equality", "SELECT * FROM t WHERE id='5'", "SELECT * FROM t WHERE id=5", 1},
		{"in list", "SELECT * FROM t WHERE id IN ('1','2')", "SELECT * FROM t WHERE id IN (1, 2)", 1},
		{"bare in list", "SELECT * FROM t WHERE id IN (1,2)", "SELECT * FROM t WHERE id IN (1,2)", 0},
		{"bare comparison", "SELECT * FROM t WHERE id>5", "SELECT * FROM t WHERE id>5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := RewritePredicates(tt.quoted, types)
			assert.Equal(t, tt.bare, first.SQL)
			assert.Equal(t, tt.changed, first.Rewritten)

			second := RewritePredicates(first.SQL, types)
			assert.Equal(t, first.SQL, second.SQL)
			assert.Zero(t, second.Rewritten)
		})
	}
}

func TestRewritePredicatesWithoutSchema(t *testing.T) {
	got := RewritePredicates("SELECT * FROM t WHERE id = '5'", nil)
	assert.Equal(t, "SELECT * FROM t WHERE id = '5'", got.SQL)
	assert.Zero(t, got.Rewritten)
}

func TestIsRegexColumn(t *testing.T) {
	assert.True(t, IsRegexColumn("title__regex"))
	assert.False(t, IsRegexColumn("title"))
}
