package handlers

import (
	"context"
	"strings"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/query"
	"github.com/infobridge/infobridge/query/rules"
	"github.com/infobridge/infobridge/telemetry"
	"github.com/rs/zerolog/log"
)

type method struct {
	statement string
	field     string
}

// methods answers bare function calls with an equivalent backend statement.
var methods = map[string]method{
	"version()": {statement: "show status like 'mysql_version'", field: "Value"},
}

func (e *Engine) handleCountOnField(ctx context.Context, client backend.Client, stmt *query.Statement) (backend.Result, error) {
	sql, err := e.applyRules(e.countRules, stmt.Original)
	if err != nil {
		return nil, err
	}
	return client.Send(ctx, sql)
}

// handlePrefixed forwards the statement without the alias prefix and falls
// back to the generic rewrite when the backend fails in a recoverable way.
func (e *Engine) handlePrefixed(ctx context.Context, client backend.Client, stmt *query.Statement) (backend.Result, error) {
	return runPipeline(ctx, client, stmt, e.forwardStripped, e.rewriteStage)
}

func (e *Engine) forwardStripped(ctx context.Context, client backend.Client, stmt *query.Statement) (stageResult, error) {
	sql, err := e.applyRules(e.prefixRules, stmt.Original)
	if err != nil {
		return proceed, err
	}
	res, err := client.Send(ctx, sql)
	if err != nil {
		return proceed, err
	}
	if msg := res.ErrorMessage(); msg != "" && query.IsRecoverable(msg, sql) {
		telemetry.EngineRetriesTotal.With("prefixed").Inc()
		log.Debug().Str("error", msg).Str("query", sql).Msg("Prefixed select failed, falling back to rewrite")
		return proceed, nil
	}
	return finished(res), nil
}

func (e *Engine) rewriteStage(ctx context.Context, client backend.Client, stmt *query.Statement) (stageResult, error) {
	res, err := e.handleRewrite(ctx, client, stmt)
	if err != nil {
		return proceed, err
	}
	return finished(res), nil
}

func (e *Engine) handleMethod(ctx context.Context, client backend.Client, stmt *query.Statement) (backend.Result, error) {
	if len(stmt.Fields) == 0 {
		return nil, query.NewFatalRewriteError("no method in select")
	}
	call := strings.Join(strings.Fields(stmt.Fields[0].Key), "")
	m, ok := methods[call]
	if !ok {
		return nil, query.NewFatalRewriteError("unsupported method %s", stmt.Fields[0].Expr)
	}

	res, err := client.Send(ctx, m.statement)
	if err != nil {
		return nil, err
	}
	if res.ErrorMessage() != "" {
		return res, nil
	}
	rows := res.Rows()
	if len(rows) == 0 {
		return nil, query.NewFatalRewriteError("empty response to %s", m.statement)
	}
	return backend.NewResult(
		[]backend.Column{{Name: m.field, Type: typeString}},
		[]backend.Row{{m.field: lookup(rows[0], m.field)}},
	), nil
}

func (e *Engine) handleEmptyTable(stmt *query.Statement) (backend.Result, error) {
	return backend.NewResult(stringColumns(stmt.Fields), nil), nil
}

func (e *Engine) handleColumns(ctx context.Context, client backend.Client, stmt *query.Statement) (backend.Result, error) {
	fields := expandStar(stmt.Fields, e.columns)
	if !schemaMatches(stmt, e.alias) {
		return backend.NewResult(stringColumns(fields), nil), nil
	}

	tables, rejected, err := targetTables(ctx, client, stmt)
	if err != nil || rejected != nil {
		return rejected, err
	}

	rows := []backend.Row{}
	for _, table := range tables {
		desc, err := describe(ctx, client, table)
		if err != nil {
			return nil, err
		}
		if msg := desc.ErrorMessage(); msg != "" {
			log.Debug().Str("table", table).Str("error", msg).Msg("Skipping table")
			continue
		}
		for _, src := range desc.Rows() {
			row, err := shapeRow(fields, e.columns, src, table)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	return backend.NewResult(stringColumns(fields), rows), nil
}

func (e *Engine) handleTables(ctx context.Context, client backend.Client, stmt *query.Statement) (backend.Result, error) {
	if len(stmt.Fields) == 1 && isCountStar(stmt.Fields[0]) {
		return e.handleFieldCount(ctx, client, stmt)
	}

	fields := expandStar(stmt.Fields, e.tables)
	if !schemaMatches(stmt, e.alias) {
		return backend.NewResult(stringColumns(fields), nil), nil
	}

	_, hasName := stmt.Predicate(ColumnTableName)
	if !hasName && len(fields) == 1 {
		switch {
		case strings.Contains(fields[0].Key, ColumnTableSchema):
			return backend.NewResult(stringColumns(fields), []backend.Row{{fields[0].Name: e.alias}}), nil
		case strings.Contains(fields[0].Key, ColumnTableName):
			tables, rejected, err := listTables(ctx, client)
			if err != nil || rejected != nil {
				return rejected, err
			}
			rows := make([]backend.Row, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, backend.Row{fields[0].Name: t})
			}
			return backend.NewResult(stringColumns(fields), rows), nil
		}
	}

	tables, rejected, err := targetTables(ctx, client, stmt)
	if err != nil || rejected != nil {
		return rejected, err
	}

	rows := []backend.Row{}
	for _, table := range tables {
		engine, ok, err := tableEngine(ctx, client, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		row, err := shapeRow(fields, e.tables, backend.Row{ColumnEngine: engine}, table)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return backend.NewResult(stringColumns(fields), rows), nil
}

// handleFieldCount answers count(*) over information_schema.tables. With a
// table_name equality it counts the columns of that table.
func (e *Engine) handleFieldCount(ctx context.Context, client backend.Client, stmt *query.Statement) (backend.Result, error) {
	field := stmt.Fields[0]
	var count int64

	if p, ok := stmt.Predicate(ColumnTableName); ok && p.Operator == "=" {
		desc, err := describe(ctx, client, p.Value)
		if err != nil {
			return nil, err
		}
		if desc.ErrorMessage() != "" {
			return desc, nil
		}
		count = int64(len(desc.Rows()))
	} else {
		tables, rejected, err := targetTables(ctx, client, stmt)
		if err != nil || rejected != nil {
			return rejected, err
		}
		count = int64(len(tables))
	}

	return backend.NewResult(countColumn(field), []backend.Row{{field.Name: count}}), nil
}

// handleRewrite is the generic path: rewrite rules, then type-aware
// predicate rewriting, then forward.
func (e *Engine) handleRewrite(ctx context.Context, client backend.Client, stmt *query.Statement) (backend.Result, error) {
	sql, err := e.applyRules(e.rewriteRules, stmt.Original)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sql) == "" {
		return nil, query.NewFatalRewriteError("rewritten query is empty")
	}

	types, err := columnTypes(ctx, client, stmt.Table)
	if err != nil {
		return nil, err
	}

	rewrite := rules.RewritePredicates(sql, types)
	if rewrite.Rewritten > 0 {
		telemetry.RewritesTotal.With("Predicates").Inc()
		log.Debug().
			Str("original", sql).
			Str("rewritten", rewrite.SQL).
			Int("predicates", rewrite.Rewritten).
			Msg("Rewrote predicates")
	}

	res, err := client.Send(ctx, rewrite.SQL)
	if err != nil {
		return nil, err
	}
	if len(rewrite.RegexColumns) > 0 {
		res = stripRegexColumns(res)
	}
	return res, nil
}

func isCountStar(f query.Field) bool {
	return strings.HasPrefix(strings.Join(strings.Fields(f.Key), ""), "count(*)")
}
