package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/infobridge/infobridge/query"
)

// RegexColumnSuffix marks the synthetic columns added for LIKE rewrites.
const RegexColumnSuffix = "__regex"

var (
	numericTypes = map[string]bool{"bigint": true, "int": true, "uint": true}
	stringTypes  = map[string]bool{"json": true, "string": true}

	numericLiteral = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	selectHead     = regexp.MustCompile(`(?i)^\s*SELECT\s+(?:(?:DISTINCT|ALL|SQL_CALC_FOUND_ROWS|SQL_NO_CACHE|HIGH_PRIORITY)\s+)*`)
)

// PredicateRewrite is the outcome of RewritePredicates.
type PredicateRewrite struct {
	SQL string
	// RegexColumns lists the synthetic columns injected into the projection
	RegexColumns []string
	// Rewritten counts the predicates that were changed
	Rewritten int
}

// IsRegexColumn reports whether name is a synthetic LIKE column.
func IsRegexColumn(name string) bool {
	return strings.HasSuffix(name, RegexColumnSuffix)
}

// RewritePredicates adapts WHERE literals to the column types in types
// (lower-cased column name to backend type). Quoted numbers compared with
// integer columns lose their quotes. LIKE on string and json columns turns
// into a comparison against an injected REGEX() projection.
func RewritePredicates(sql string, types map[string]string) PredicateRewrite {
	res := PredicateRewrite{SQL: sql}
	if len(types) == 0 {
		return res
	}
	where := query.IndexKeyword(sql, "WHERE")
	if where < 0 {
		return res
	}

	head, tail := sql[:where], sql[where:]
	var injected []string
	seen := make(map[string]int)

	tail = query.ScanPredicates(tail, func(m query.PredicateMatch) string {
		typ, ok := types[strings.ToLower(m.Column)]
		if !ok {
			return m.Raw
		}
		typ = strings.ToLower(typ)

		switch {
		case numericTypes[typ]:
			out := rewriteNumeric(m)
			if out != m.Raw {
				res.Rewritten++
			}
			return out
		case stringTypes[typ] && m.IsLike():
			alias := regexAlias(m.Column, seen)
			pattern := strings.ReplaceAll(m.Value, "%", ".*")
			injected = append(injected, fmt.Sprintf("REGEX(%s, '^%s$') AS %s", m.ColumnText, pattern, alias))
			res.RegexColumns = append(res.RegexColumns, alias)
			res.Rewritten++

			flag := "1"
			if m.Operator == "NOT LIKE" {
				flag = "0"
			}
			return alias + " = " + flag
		}
		return m.Raw
	})

	if len(injected) > 0 {
		if loc := selectHead.FindStringIndex(head); loc != nil {
			head = head[:loc[1]] + strings.Join(injected, ", ") + ", " + head[loc[1]:]
		}
	}
	res.SQL = head + tail
	return res
}

// rewriteNumeric drops the quotes around numeric literals compared with an
// integer column. Predicates without quoted values come back unchanged, so
// the rewrite is idempotent.
func rewriteNumeric(m query.PredicateMatch) string {
	if m.IsList() {
		if !strings.ContainsAny(m.Value, `'"`) {
			return m.Raw
		}
		values := m.ListValues()
		for _, v := range values {
			if !numericLiteral.MatchString(v) {
				return m.Raw
			}
		}
		open := strings.LastIndexByte(m.Raw, '(')
		return m.Raw[:open+1] + strings.Join(values, ", ") + ")"
	}
	if !m.Quoted || !numericLiteral.MatchString(m.Value) {
		return m.Raw
	}
	return m.Raw[:len(m.Raw)-len(m.Value)-2] + m.Value
}

func regexAlias(column string, seen map[string]int) string {
	key := strings.ToLower(column)
	seen[key]++
	if n := seen[key]; n > 1 {
		return fmt.Sprintf("%s_%d%s", column, n, RegexColumnSuffix)
	}
	return column + RegexColumnSuffix
}
