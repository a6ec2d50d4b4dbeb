package query

import (
	"regexp"
	"strings"
)

var (
	plainIdentPattern = regexp.MustCompile("^`?[A-Za-z_@$][\\w@$]*`?(?:\\s*\\.\\s*`?[A-Za-z_@$][\\w@$]*`?)*$")
	selectModifiers   = regexp.MustCompile(`(?i)^\s*(?:(?:DISTINCT|ALL|SQL_CALC_FOUND_ROWS|SQL_NO_CACHE|HIGH_PRIORITY)\s+)+`)
	dotSpacing        = regexp.MustCompile(`\s*\.\s*`)
)

// NewField builds a Field from one projected expression.
func NewField(expr string) Field {
	expr = strings.TrimSpace(expr)
	body := expr
	name := ""
	if i := lastIndexKeyword(expr, "AS"); i > 0 {
		if alias := strings.TrimSpace(expr[i+2:]); alias != "" {
			body = strings.TrimSpace(expr[:i])
			name = unquoteIdentifier(alias)
		}
	}

	key := lower(stripBackticks(body))
	if plainIdentPattern.MatchString(body) {
		key = lastSegment(key)
		if name == "" {
			name = key
		}
	}
	if name == "" {
		name = body
	}
	return Field{Expr: expr, Name: name, Key: key}
}

// SplitFields splits a projection list on top-level commas.
// Leading select modifiers such as DISTINCT are dropped.
func SplitFields(projection string) []Field {
	projection = selectModifiers.ReplaceAllString(projection, "")
	parts := splitTopLevel(projection, ',')
	fields := make([]Field, 0, len(parts))
	for _, p := range parts {
		fields = append(fields, NewField(p))
	}
	return fields
}

// IsStar reports whether the field is a bare *.
func (f Field) IsStar() bool {
	return f.Key == "*"
}

func lastSegment(ident string) string {
	ident = dotSpacing.ReplaceAllString(ident, ".")
	if i := strings.LastIndexByte(ident, '.'); i >= 0 {
		return ident[i+1:]
	}
	return ident
}
