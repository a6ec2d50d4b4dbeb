package rules

import (
	"regexp"

	"github.com/infobridge/infobridge/query"
)

var (
	containsNearDetect  = regexp.MustCompile(`(?i)\bCONTAINS\(\s*[^,()]+,\s*'NEAR\(`)
	containsNearPattern = regexp.MustCompile(
		"(?i)\\bCONTAINS\\(\\s*`?[a-z@_][\\w@$]*`?\\s*,\\s*'NEAR\\(\\(\\s*(\\w+)\\s*,\\s*(\\w+)\\s*\\)\\s*,\\s*(\\d+)\\s*\\)'\\s*\\)")
)

// ContainsNearRule rewrites CONTAINS(col, 'NEAR((a, b), n)') into the
// backend's proximity search MATCH('a NEAR/n b').
type ContainsNearRule struct{}

func (r *ContainsNearRule) Name() string  { return "ContainsNear" }
func (r *ContainsNearRule) Priority() int { return 40 }

func (r *ContainsNearRule) ApplyPattern(sql string) (string, bool, error) {
	detected := len(containsNearDetect.FindAllStringIndex(sql, -1))
	if detected == 0 {
		return sql, false, nil
	}
	if rewritable := len(containsNearPattern.FindAllStringIndex(sql, -1)); rewritable < detected {
		return "", false, query.NewFatalRewriteError("failed to parse contains from the query")
	}

	newSQL := containsNearPattern.ReplaceAllString(sql, "MATCH('$1 NEAR/$3 $2')")
	return newSQL, newSQL != sql, nil
}
