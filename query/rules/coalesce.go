package rules

import (
	"regexp"

	"github.com/infobridge/infobridge/query"
)

var (
	coalesceDetect  = regexp.MustCompile("(?i)\\bCOALESCE\\(\\s*`?[a-z@_][\\w@$]*`?\\s*,\\s*''\\s*\\)")
	coalescePattern = regexp.MustCompile("(?i)\\bCOALESCE\\(\\s*(`?[a-z@_][\\w@$]*`?)\\s*,\\s*''\\s*\\)\\s*(<>|!=|=)\\s*''")
)

// CoalesceRule rewrites COALESCE(col, '') <op> '' into col <op> ''.
// A COALESCE(col, '') that is not compared against '' cannot be expressed
// on the backend and fails the rewrite.
type CoalesceRule struct{}

func (r *CoalesceRule) Name() string  { return "Coalesce" }
func (r *CoalesceRule) Priority() int { return 30 }

func (r *CoalesceRule) ApplyPattern(sql string) (string, bool, error) {
	detected := len(coalesceDetect.FindAllStringIndex(sql, -1))
	if detected == 0 {
		return sql, false, nil
	}
	if rewritable := len(coalescePattern.FindAllStringIndex(sql, -1)); rewritable < detected {
		return "", false, query.NewFatalRewriteError("failed to parse coalesce from the query")
	}

	newSQL := coalescePattern.ReplaceAllString(sql, "$1 $2 ''")
	return newSQL, newSQL != sql, nil
}
