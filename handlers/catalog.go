package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/query"
	"github.com/rs/zerolog/log"
)

const defaultEngine = "ROWWISE"

var (
	enginePattern = regexp.MustCompile(`(?i)\)\s*engine\s*=\s*'([^']+)'`)

	globEscaper = strings.NewReplacer(
		`\`, `\\`, `*`, `\*`, `?`, `\?`,
		`[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
	)

	tableListKeys = []string{"Index", "Table", "Tables_in_" + strings.ToLower(query.DefaultDatabaseAlias)}
)

// describe runs DESC on table. A backend rejection is returned as data.
func describe(ctx context.Context, client backend.Client, table string) (backend.Result, error) {
	return client.Send(ctx, "DESC "+table)
}

// columnTypes maps lower-cased column names of table to their backend type.
// An unknown table yields an empty map.
func columnTypes(ctx context.Context, client backend.Client, table string) (map[string]string, error) {
	res, err := describe(ctx, client, table)
	if err != nil {
		return nil, err
	}
	types := make(map[string]string)
	if msg := res.ErrorMessage(); msg != "" {
		log.Debug().Str("table", table).Str("error", msg).Msg("Describe failed, rewriting without column types")
		return types, nil
	}
	for _, row := range res.Rows() {
		name := lookupString(row, "Field")
		if name == "" {
			continue
		}
		types[strings.ToLower(name)] = lookupString(row, "Type")
	}
	return types, nil
}

// listTables returns every table the backend knows. A non-nil Result is a
// backend rejection the caller should hand back as is.
func listTables(ctx context.Context, client backend.Client) ([]string, backend.Result, error) {
	res, err := client.Send(ctx, "SHOW TABLES")
	if err != nil {
		return nil, nil, err
	}
	if res.ErrorMessage() != "" {
		return nil, res, nil
	}

	key := tableListKey(res)
	tables := make([]string, 0, len(res.Rows()))
	for _, row := range res.Rows() {
		if name := lookupString(row, key); name != "" {
			tables = append(tables, name)
		}
	}
	return tables, nil, nil
}

func tableListKey(res backend.Result) string {
	rows := res.Rows()
	if len(rows) > 0 {
		for _, key := range tableListKeys {
			if lookup(rows[0], key) != nil {
				return key
			}
		}
	}
	if cols := res.First().Columns; len(cols) > 0 {
		return cols[0].Name
	}
	return tableListKeys[0]
}

// tableEngine reads the storage engine from SHOW CREATE TABLE. ok is false
// when the backend rejected the statement.
func tableEngine(ctx context.Context, client backend.Client, table string) (engine string, ok bool, err error) {
	res, err := client.Send(ctx, "SHOW CREATE TABLE "+table)
	if err != nil {
		return "", false, err
	}
	if msg := res.ErrorMessage(); msg != "" {
		log.Debug().Str("table", table).Str("error", msg).Msg("Show create table failed")
		return "", false, nil
	}
	rows := res.Rows()
	if len(rows) == 0 {
		return defaultEngine, true, nil
	}
	if m := enginePattern.FindStringSubmatch(lookupString(rows[0], "Create Table")); m != nil {
		return strings.ToUpper(m[1]), true, nil
	}
	return defaultEngine, true, nil
}

// targetTables resolves the tables a metadata query is about from its
// table_name predicate. Without one every table is returned.
func targetTables(ctx context.Context, client backend.Client, stmt *query.Statement) ([]string, backend.Result, error) {
	p, ok := stmt.Predicate(ColumnTableName)
	if ok {
		switch p.Operator {
		case "=":
			return []string{p.Value}, nil, nil
		case "IN":
			return p.ListValues(), nil, nil
		}
	}

	tables, rejected, err := listTables(ctx, client)
	if err != nil || rejected != nil || !ok {
		return tables, rejected, err
	}

	keep, err := tableFilter(p)
	if err != nil {
		return nil, nil, err
	}
	filtered := tables[:0]
	for _, t := range tables {
		if keep(t) {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil, nil
}

// tableFilter turns a table_name predicate into a name matcher.
func tableFilter(p query.Predicate) (func(string) bool, error) {
	switch p.Operator {
	case "LIKE", "NOT LIKE":
		g, err := likeGlob(p.Value)
		if err != nil {
			return nil, query.NewFatalRewriteError("invalid table_name pattern %q: %v", p.Value, err)
		}
		negate := p.Operator == "NOT LIKE"
		return func(t string) bool {
			return g.Match(strings.ToLower(t)) != negate
		}, nil
	case "NOT IN":
		excluded := make(map[string]bool)
		for _, v := range p.ListValues() {
			excluded[strings.ToLower(v)] = true
		}
		return func(t string) bool { return !excluded[strings.ToLower(t)] }, nil
	case "<>", "!=":
		return func(t string) bool { return !strings.EqualFold(t, p.Value) }, nil
	default:
		return func(string) bool { return true }, nil
	}
}

// likeGlob compiles a SQL LIKE pattern into a case-insensitive glob.
func likeGlob(pattern string) (glob.Glob, error) {
	var b strings.Builder
	escaped := false
	for _, r := range strings.ToLower(pattern) {
		switch {
		case escaped:
			b.WriteString(globEscaper.Replace(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteByte('*')
		case r == '_':
			b.WriteByte('?')
		default:
			b.WriteString(globEscaper.Replace(string(r)))
		}
	}
	return glob.Compile(b.String())
}

// schemaMatches reports whether a table_schema equality predicate, if any,
// names the database alias.
func schemaMatches(stmt *query.Statement, alias string) bool {
	p, ok := stmt.Predicate(ColumnTableSchema)
	if !ok || p.Operator != "=" {
		return true
	}
	return strings.EqualFold(p.Value, alias)
}

func countColumn(f query.Field) []backend.Column {
	return []backend.Column{{Name: f.Name, Type: typeLongLong}}
}
