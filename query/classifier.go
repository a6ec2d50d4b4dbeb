package query

import (
	"regexp"
	"strings"
)

// DefaultDatabaseAlias is the database name clients use to reach the backend.
const DefaultDatabaseAlias = "Manticore"

var (
	selectPattern     = regexp.MustCompile(`(?is)^\s*SELECT\b`)
	versionPattern    = regexp.MustCompile(`(?i)^\s*SELECT\s+VERSION\s*\(\s*\)\s*;?\s*$`)
	methodCallPattern = regexp.MustCompile(`^[A-Za-z_]\w*\s*\(\s*\)$`)
	tableRefPattern   = regexp.MustCompile("^\\s*((?:`[^`]+`|[A-Za-z_@][\\w@$-]*)(?:\\s*\\.\\s*(?:`[^`]+`|[A-Za-z_@][\\w@$-]*))*)")
	newlineReplacer   = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// Classifier decides which SELECT statements the engine claims and turns
// claimed statements into a Statement. It holds no per-request state.
type Classifier struct {
	alias         string
	aliasRef      *regexp.Regexp
	handledTables []*regexp.Regexp
}

// NewClassifier creates a classifier for the given database alias.
func NewClassifier(alias string) *Classifier {
	if alias == "" {
		alias = DefaultDatabaseAlias
	}
	c := &Classifier{
		alias:    alias,
		aliasRef: regexp.MustCompile("(?i)(?:^|[^\\w$])`?" + regexp.QuoteMeta(alias) + "`?\\s*\\."),
	}
	for _, table := range HandledTables {
		schema, name, _ := strings.Cut(table, ".")
		c.handledTables = append(c.handledTables, regexp.MustCompile(
			"(?i)(?:^|[^\\w$])`?"+regexp.QuoteMeta(schema)+"`?\\s*\\.\\s*`?"+regexp.QuoteMeta(name)+"`?(?:$|[^\\w$])"))
	}
	return c
}

// Alias returns the database alias the classifier was built with.
func (c *Classifier) Alias() string {
	return c.alias
}

// Admits reports whether the engine should handle req. It never talks to
// the backend.
func (c *Classifier) Admits(req Request) bool {
	payload := normalize(req.Payload)
	if !selectPattern.MatchString(payload) {
		return false
	}
	if c.referencesHandledTable(payload) || c.ReferencesAlias(payload) || versionPattern.MatchString(payload) {
		return true
	}
	return IsRecoverable(req.Error, payload)
}

// ReferencesAlias reports whether sql qualifies something with the database alias.
func (c *Classifier) ReferencesAlias(sql string) bool {
	return c.aliasRef.MatchString(sql)
}

func (c *Classifier) referencesHandledTable(sql string) bool {
	for _, re := range c.handledTables {
		if re.MatchString(sql) {
			return true
		}
	}
	return false
}

// Parse extracts the table, fields and predicates of req. Statements the
// engine cannot serve yield a ClassificationError.
func (c *Classifier) Parse(req Request) (*Statement, error) {
	text := normalize(req.Payload)
	loc := selectPattern.FindStringIndex(text)
	if loc == nil {
		return nil, NewClassificationError("not a select statement")
	}

	stmt := &Statement{
		Original:   text,
		Prefixed:   c.ReferencesAlias(text),
		Predicates: map[string]Predicate{},
		Request:    req,
	}

	body := text[loc[1]:]
	from := indexKeyword(body, "FROM")
	if from < 0 {
		projection := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(body), ";"))
		if !methodCallPattern.MatchString(projection) {
			return nil, NewClassificationError("no table or function call")
		}
		stmt.Fields = []Field{NewField(projection)}
		return stmt, nil
	}

	stmt.Fields = SplitFields(body[:from])
	if len(stmt.Fields) == 0 {
		return nil, NewClassificationError("empty projection")
	}

	rest := body[from+len("FROM"):]
	m := tableRefPattern.FindStringSubmatch(rest)
	if m == nil {
		return nil, NewClassificationError("no table reference")
	}
	stmt.Table = c.normalizeTable(m[1])

	if where := indexKeyword(rest, "WHERE"); where >= 0 {
		stmt.Predicates = ExtractPredicates(rest[where+len("WHERE"):])
	}

	if !IsHandledTable(stmt.Table) && !stmt.Prefixed && !IsRecoverable(req.Error, text) {
		return nil, NewClassificationError("table " + stmt.Table + " is not handled")
	}
	return stmt, nil
}

func (c *Classifier) normalizeTable(raw string) string {
	table := lower(dotSpacing.ReplaceAllString(stripBackticks(raw), "."))
	if prefix := lower(c.alias) + "."; strings.HasPrefix(table, prefix) {
		table = table[len(prefix):]
	}
	return table
}

func normalize(payload string) string {
	return strings.TrimSpace(newlineReplacer.Replace(payload))
}
