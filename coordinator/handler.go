package coordinator

import (
	"context"
	"time"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/handlers"
	"github.com/infobridge/infobridge/protocol"
	"github.com/infobridge/infobridge/query"
	"github.com/infobridge/infobridge/telemetry"
	"github.com/rs/zerolog/log"
)

// strategyBackend labels statements forwarded to the backend as written
const strategyBackend = "backend"

// Options configures locally answered session queries
type Options struct {
	ServerVersion  string
	VersionComment string
}

// CoordinatorHandler implements protocol.ConnectionHandler.
// Session commands are answered locally, statements the engine claims go
// through the engine, and everything else is forwarded to the backend. A
// backend rejection the engine knows how to work around is retried
// through the engine.
type CoordinatorHandler struct {
	engine *handlers.Engine
	client backend.Client
	stats  *StatementStats
	opts   Options
}

// NewCoordinatorHandler creates a new handler. stats may be nil.
func NewCoordinatorHandler(engine *handlers.Engine, client backend.Client, stats *StatementStats, opts Options) *CoordinatorHandler {
	return &CoordinatorHandler{
		engine: engine,
		client: client,
		stats:  stats,
		opts:   opts,
	}
}

// HandleQuery processes a SQL query from a MySQL connection
func (h *CoordinatorHandler) HandleQuery(ctx context.Context, session *protocol.ConnectionSession, sql string) (*protocol.ResultSet, error) {
	log.Debug().
		Uint64("conn_id", session.ConnID).
		Str("database", session.CurrentDatabase()).
		Str("query", sql).
		Msg("Handling query")

	switch cmd := protocol.ParseSessionCommand(sql); cmd.Kind {
	case protocol.SessionCommandSet:
		return nil, nil
	case protocol.SessionCommandUse:
		session.SetCurrentDatabase(cmd.Database)
		return nil, nil
	case protocol.SessionCommandSystemVariables:
		return protocol.SystemVariablesResult(cmd.Fields, protocol.SystemVarConfig{
			ServerVersion:  h.opts.ServerVersion,
			VersionComment: h.opts.VersionComment,
			ConnID:         session.ConnID,
			CurrentDB:      session.CurrentDatabase(),
			User:           session.User,
		}), nil
	}

	res, err := h.Dispatch(ctx, query.Request{Payload: sql})
	if err != nil {
		log.Debug().Err(err).Uint64("conn_id", session.ConnID).Msg("Query failed")
		return nil, err
	}
	return ToResultSet(res)
}

// Dispatch answers one inbound request. When req.Error is set the caller
// already holds the backend's reply, which is returned unchanged if the
// engine does not take the statement.
func (h *CoordinatorHandler) Dispatch(ctx context.Context, req query.Request) (backend.Result, error) {
	start := time.Now()
	res, strategy, retried, err := h.dispatch(ctx, req)
	h.stats.Record(req.Payload, strategy, time.Since(start), err != nil || res.ErrorMessage() != "", retried)
	return res, err
}

func (h *CoordinatorHandler) dispatch(ctx context.Context, req query.Request) (backend.Result, string, bool, error) {
	if h.engine.Admits(req) {
		res, strategy, err := h.runEngine(ctx, req)
		if !query.IsClassificationError(err) {
			return res, strategy, false, err
		}
	}
	if req.Error != "" {
		return backend.ErrorResult(req.Error), strategyBackend, false, nil
	}

	res, err := h.client.WithPath(req.Path).Send(ctx, req.Payload)
	if err != nil {
		log.Error().Err(err).Str("query", req.Payload).Msg("Backend request failed")
		return nil, strategyBackend, false, err
	}

	msg := res.ErrorMessage()
	if msg == "" {
		return res, strategyBackend, false, nil
	}

	retry := req
	retry.Error = msg
	if !h.engine.Admits(retry) {
		return res, strategyBackend, false, nil
	}

	telemetry.EngineRetriesTotal.With("backend_error").Inc()
	log.Debug().Str("error", msg).Str("query", req.Payload).Msg("Retrying rejected select through engine")

	out, strategy, err := h.runEngine(ctx, retry)
	if query.IsClassificationError(err) {
		return res, strategyBackend, true, nil
	}
	return out, strategy, true, err
}

func (h *CoordinatorHandler) runEngine(ctx context.Context, req query.Request) (backend.Result, string, error) {
	stmt, err := h.engine.Parse(req)
	if err != nil {
		return nil, "", err
	}
	strategy := h.engine.Route(stmt).String()
	res, err := h.engine.Execute(ctx, stmt)
	return res, strategy, err
}

// Stats returns the statement statistics table, or nil.
func (h *CoordinatorHandler) Stats() *StatementStats {
	return h.stats
}
