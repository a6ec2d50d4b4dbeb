package rules

import "regexp"

// DatabasePrefixRule removes the database alias qualifier, so that
// `Manticore`.products and Manticore.products both become products.
type DatabasePrefixRule struct {
	pattern *regexp.Regexp
}

func NewDatabasePrefixRule(alias string) *DatabasePrefixRule {
	q := regexp.QuoteMeta(alias)
	return &DatabasePrefixRule{
		pattern: regexp.MustCompile("(?i)(?:`" + q + "`|\\b" + q + ")\\s*\\.\\s*"),
	}
}

func (r *DatabasePrefixRule) Name() string  { return "DatabasePrefix" }
func (r *DatabasePrefixRule) Priority() int { return 10 }

func (r *DatabasePrefixRule) ApplyPattern(sql string) (string, bool, error) {
	if !r.pattern.MatchString(sql) {
		return sql, false, nil
	}
	newSQL := r.pattern.ReplaceAllString(sql, "")
	return newSQL, newSQL != sql, nil
}
