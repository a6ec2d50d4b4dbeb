package query

import (
	"regexp"
	"strings"
)

// <identifier> <operator> <literal>, literal being a single-quoted string,
// a bare integer or decimal, or a parenthesized list.
var predicatePattern = regexp.MustCompile(
	"(?i)(`[^`]+`|[A-Za-z_@][\\w@$]*(?:\\.[A-Za-z_@][\\w@$]*)*)\\s*" +
		`(NOT\s+LIKE|NOT\s+IN|LIKE|IN|<>|!=|=|<|>)\s*` +
		`(?:'((?:[^'\\]|\\.|'')*)'|(-?\d+(?:\.\d+)?)|\(([^()]*)\))`)

// PredicateMatch is one predicate occurrence together with its source text.
type PredicateMatch struct {
	Predicate
	// Raw is the full matched text
	Raw string
	// ColumnText is the column exactly as written
	ColumnText string
}

// ScanPredicates calls fn for every predicate in text, in order, and
// substitutes each occurrence with what fn returns. Text inside string
// literals is never scanned, and a predicate must start on an identifier
// boundary, so MIN(x) is not read as M IN (x).
func ScanPredicates(text string, fn func(m PredicateMatch) string) string {
	var locs [][]int
	var quoted []bool
	for pos := 0; pos < len(text); {
		loc := predicatePattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		if quoted == nil {
			quoted = quotedMask(text)
		}
		if !acceptPredicate(text, quoted, loc) {
			pos = loc[0] + 1
			continue
		}
		locs = append(locs, loc)
		pos = loc[1]
	}
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		b.WriteString(fn(newPredicateMatch(text, loc)))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// acceptPredicate rejects matches starting inside a quoted string or in the
// middle of an identifier, and word operators glued to the column name.
func acceptPredicate(text string, quoted []bool, loc []int) bool {
	start := loc[0]
	if quoted[start] {
		return false
	}
	if start > 0 && isIdentByte(text[start-1]) {
		return false
	}
	colEnd, opStart := loc[3], loc[4]
	if isIdentByte(text[opStart]) && opStart == colEnd && text[colEnd-1] != '`' {
		return false
	}
	return true
}

// ExtractPredicates collects the predicates of a WHERE clause keyed by
// lower-cased column name. A later predicate on the same column replaces
// an earlier one.
func ExtractPredicates(where string) map[string]Predicate {
	predicates := make(map[string]Predicate)
	ScanPredicates(where, func(m PredicateMatch) string {
		predicates[lower(m.Column)] = m.Predicate
		return m.Raw
	})
	return predicates
}

func newPredicateMatch(text string, loc []int) PredicateMatch {
	group := func(n int) (string, bool) {
		if loc[2*n] < 0 {
			return "", false
		}
		return text[loc[2*n]:loc[2*n+1]], true
	}

	columnText, _ := group(1)
	op, _ := group(2)
	m := PredicateMatch{
		Raw:        text[loc[0]:loc[1]],
		ColumnText: columnText,
		Predicate: Predicate{
			Column:   lastSegment(stripBackticks(columnText)),
			Operator: strings.ToUpper(strings.Join(strings.Fields(op), " ")),
		},
	}
	if v, ok := group(3); ok {
		m.Value = v
		m.Quoted = true
	} else if v, ok := group(4); ok {
		m.Value = v
	} else if v, ok := group(5); ok {
		m.Value = strings.TrimSpace(v)
	}
	return m
}

// IsList reports whether the predicate compares against a parenthesized list.
func (p Predicate) IsList() bool {
	return p.Operator == "IN" || p.Operator == "NOT IN"
}

// IsLike reports whether the predicate is a LIKE or NOT LIKE match.
func (p Predicate) IsLike() bool {
	return p.Operator == "LIKE" || p.Operator == "NOT LIKE"
}

// ListValues splits an IN list into its elements with quotes removed.
func (p Predicate) ListValues() []string {
	parts := splitTopLevel(p.Value, ',')
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		values = append(values, unquoteLiteral(part))
	}
	return values
}

func unquoteLiteral(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
