package rules

import (
	"regexp"

	"github.com/infobridge/infobridge/query"
)

// COUNT(DISTINCT x) is left alone: the backend counts distinct values
// natively and COUNT(*) would answer a different question.
var countOnFieldPattern = regexp.MustCompile("(?i)\\bCOUNT\\(\\s*(`?[\\w@$.]+`?)\\s*\\)")

// CountStarRule turns COUNT(<column>) into COUNT(*). The backend only
// counts rows.
type CountStarRule struct{}

func (r *CountStarRule) Name() string  { return "CountStar" }
func (r *CountStarRule) Priority() int { return 20 }

func (r *CountStarRule) ApplyPattern(sql string) (string, bool, error) {
	if !countOnFieldPattern.MatchString(sql) {
		return sql, false, nil
	}
	newSQL := countOnFieldPattern.ReplaceAllString(sql, "COUNT(*)")
	return newSQL, newSQL != sql, nil
}

// HasCountOnField reports whether any projected field counts a column
// rather than *.
func HasCountOnField(fields []query.Field) bool {
	for _, f := range fields {
		if countOnFieldPattern.MatchString(f.Expr) {
			return true
		}
	}
	return false
}
