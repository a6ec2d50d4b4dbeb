package rules

import "sort"

// Rule is a single textual rewrite applied to a statement before it is
// forwarded to the backend.
type Rule interface {
	Name() string
	Priority() int
	ApplyPattern(sql string) (string, bool, error)
}

type RuleSet []Rule

func (rs RuleSet) Len() int           { return len(rs) }
func (rs RuleSet) Less(i, j int) bool { return rs[i].Priority() < rs[j].Priority() }
func (rs RuleSet) Swap(i, j int)      { rs[i], rs[j] = rs[j], rs[i] }

// Transformation records one applied rule.
type Transformation struct {
	Rule   string
	Before string
	After  string
}

// NewRuleSet returns the rules ordered by priority.
func NewRuleSet(rules ...Rule) RuleSet {
	rs := RuleSet(rules)
	sort.Stable(rs)
	return rs
}

// Apply runs every rule in order. The first rule error aborts the rewrite.
func (rs RuleSet) Apply(sql string) (string, []Transformation, error) {
	var transformations []Transformation
	for _, rule := range rs {
		newSQL, applied, err := rule.ApplyPattern(sql)
		if err != nil {
			return "", transformations, err
		}
		if applied {
			transformations = append(transformations, Transformation{
				Rule:   rule.Name(),
				Before: sql,
				After:  newSQL,
			})
			sql = newSQL
		}
	}
	return sql, transformations, nil
}
