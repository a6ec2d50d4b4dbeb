package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/query"
	"github.com/infobridge/infobridge/query/rules"
	"github.com/infobridge/infobridge/telemetry"
	"github.com/rs/zerolog/log"
)

// Strategy is the handling path chosen for a statement.
type Strategy int

const (
	StrategyCountOnField Strategy = iota
	StrategyPrefixed
	StrategyMethod
	StrategyEmptyTable
	StrategyColumns
	StrategyTables
	StrategyRewrite
)

func (s Strategy) String() string {
	switch s {
	case StrategyCountOnField:
		return "count_on_field"
	case StrategyPrefixed:
		return "prefixed"
	case StrategyMethod:
		return "method"
	case StrategyEmptyTable:
		return "empty_table"
	case StrategyColumns:
		return "columns"
	case StrategyTables:
		return "tables"
	case StrategyRewrite:
		return "rewrite"
	default:
		return "unknown"
	}
}

// Options configures an Engine.
type Options struct {
	// DatabaseAlias is the database name clients use for the backend
	DatabaseAlias string
}

// Engine claims SELECT statements the backend cannot answer as written,
// rewrites them and shapes the reply. It keeps no per-request state and is
// safe for concurrent use.
type Engine struct {
	classifier *query.Classifier
	client     backend.Client
	alias      string

	columns FieldMap
	tables  FieldMap

	countRules   rules.RuleSet
	prefixRules  rules.RuleSet
	rewriteRules rules.RuleSet
}

func NewEngine(client backend.Client, opts Options) *Engine {
	alias := opts.DatabaseAlias
	if alias == "" {
		alias = query.DefaultDatabaseAlias
	}
	return &Engine{
		classifier: query.NewClassifier(alias),
		client:     client,
		alias:      alias,
		columns:    columnsFieldMap(alias),
		tables:     tablesFieldMap(alias),
		countRules: rules.NewRuleSet(
			rules.NewDatabasePrefixRule(alias),
			&rules.CountStarRule{},
		),
		prefixRules: rules.NewRuleSet(
			rules.NewDatabasePrefixRule(alias),
		),
		rewriteRules: rules.NewRuleSet(
			rules.NewDatabasePrefixRule(alias),
			&rules.CoalesceRule{},
			&rules.ContainsNearRule{},
		),
	}
}

// Alias returns the database alias.
func (e *Engine) Alias() string {
	return e.alias
}

// Admits reports whether the engine claims req.
func (e *Engine) Admits(req query.Request) bool {
	admitted := e.classifier.Admits(req)
	if admitted {
		telemetry.ClassificationsTotal.With("admitted").Inc()
	} else {
		telemetry.ClassificationsTotal.With("passthrough").Inc()
	}
	return admitted
}

// Parse turns req into a Statement. Statements the engine cannot serve
// yield a ClassificationError.
func (e *Engine) Parse(req query.Request) (*query.Statement, error) {
	stmt, err := e.classifier.Parse(req)
	if err != nil {
		var ce *query.ClassificationError
		if errors.As(err, &ce) {
			log.Debug().Str("reason", ce.Reason).Str("query", req.Payload).Msg("Select not handled")
		}
		return nil, err
	}
	return stmt, nil
}

// Handle parses and executes req. A ClassificationError means the caller
// should forward the original statement, or the original backend reply,
// untouched.
func (e *Engine) Handle(ctx context.Context, req query.Request) (backend.Result, error) {
	stmt, err := e.Parse(req)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, stmt)
}

// Route picks the strategy for stmt. The first matching rule wins.
func (e *Engine) Route(stmt *query.Statement) Strategy {
	switch {
	case rules.HasCountOnField(stmt.Fields):
		return StrategyCountOnField
	case stmt.Prefixed:
		return StrategyPrefixed
	case !stmt.HasTable():
		return StrategyMethod
	case query.IsAlwaysEmpty(stmt.Table):
		return StrategyEmptyTable
	case stmt.Table == query.TableColumns:
		return StrategyColumns
	case stmt.Table == query.TableTables:
		return StrategyTables
	default:
		return StrategyRewrite
	}
}

// Execute runs the strategy chosen by Route.
func (e *Engine) Execute(ctx context.Context, stmt *query.Statement) (backend.Result, error) {
	strategy := e.Route(stmt)
	client := e.client.WithPath(stmt.Request.Path)
	start := time.Now()

	log.Debug().
		Str("strategy", strategy.String()).
		Str("table", stmt.Table).
		Str("query", stmt.Original).
		Msg("Dispatching select")

	var res backend.Result
	var err error
	switch strategy {
	case StrategyCountOnField:
		res, err = e.handleCountOnField(ctx, client, stmt)
	case StrategyPrefixed:
		res, err = e.handlePrefixed(ctx, client, stmt)
	case StrategyMethod:
		res, err = e.handleMethod(ctx, client, stmt)
	case StrategyEmptyTable:
		res, err = e.handleEmptyTable(stmt)
	case StrategyColumns:
		res, err = e.handleColumns(ctx, client, stmt)
	case StrategyTables:
		res, err = e.handleTables(ctx, client, stmt)
	default:
		res, err = e.handleRewrite(ctx, client, stmt)
	}

	telemetry.StatementDurationSeconds.With(strategy.String()).Observe(time.Since(start).Seconds())
	telemetry.StatementsTotal.With(strategy.String(), outcome(res, err)).Inc()

	if err != nil && query.IsFatalRewriteError(err) {
		log.Warn().Err(err).Str("strategy", strategy.String()).Str("query", stmt.Original).Msg("Select rewrite failed")
	}
	return res, err
}

func (e *Engine) applyRules(rs rules.RuleSet, sql string) (string, error) {
	out, transformations, err := rs.Apply(sql)
	for _, t := range transformations {
		telemetry.RewritesTotal.With(t.Rule).Inc()
		log.Debug().
			Str("rule", t.Rule).
			Str("original", t.Before).
			Str("rewritten", t.After).
			Msg("Applied rewrite rule")
	}
	return out, err
}

func outcome(res backend.Result, err error) string {
	switch {
	case err == nil && res.ErrorMessage() != "":
		return "backend_error"
	case err == nil:
		return "ok"
	case query.IsClassificationError(err):
		return "classification"
	case query.IsFatalRewriteError(err):
		return "fatal"
	default:
		return "transport_error"
	}
}
