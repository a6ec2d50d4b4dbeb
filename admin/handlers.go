package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/coordinator"
	"github.com/infobridge/infobridge/protocol"
	"github.com/infobridge/infobridge/query"
	"github.com/rs/zerolog/log"
)

// maxRequestBody bounds POST /sql bodies
const maxRequestBody = 1 << 20

// Dispatcher answers inbound requests
type Dispatcher interface {
	Dispatch(ctx context.Context, req query.Request) (backend.Result, error)
}

// SessionLister reports connected MySQL sessions
type SessionLister interface {
	Sessions() []protocol.SessionInfo
}

// AdminHandlers serves the request API and the admin endpoints
type AdminHandlers struct {
	instanceID string
	dispatcher Dispatcher
	sessions   SessionLister
	stats      *coordinator.StatementStats
}

// NewAdminHandlers creates a new AdminHandlers instance. sessions and stats may be nil.
func NewAdminHandlers(instanceID string, dispatcher Dispatcher, sessions SessionLister, stats *coordinator.StatementStats) *AdminHandlers {
	return &AdminHandlers{
		instanceID: instanceID,
		dispatcher: dispatcher,
		sessions:   sessions,
		stats:      stats,
	}
}

// sqlRequest is the POST /sql body
type sqlRequest struct {
	Payload string `json:"payload"`
	Error   string `json:"error"`
	Path    string `json:"path"`
}

// handleSQL runs one inbound request. Backend errors are part of the
// result body; only failures of the bridge itself change the status.
func (h *AdminHandlers) handleSQL(w http.ResponseWriter, r *http.Request) {
	var body sqlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.Payload == "" {
		writeErrorResponse(w, http.StatusBadRequest, "payload is required")
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), query.Request{
		Payload: body.Payload,
		Error:   body.Error,
		Path:    body.Path,
	})
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	if res == nil {
		res = backend.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *AdminHandlers) writeDispatchError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	switch {
	case query.IsClassificationError(err):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case query.IsFatalRewriteError(err):
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled):
		writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &apiErr):
		writeErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// handleHealth reports liveness
func (h *AdminHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]interface{}{
		"status":      "ok",
		"instance_id": h.instanceID,
	})
}

// handleStatements lists statement statistics, most frequent first
func (h *AdminHandlers) handleStatements(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	stats := h.stats.Snapshot()
	if stats == nil {
		stats = []coordinator.StatementStat{}
	}
	if len(stats) > limit {
		stats = stats[:limit]
	}
	writeJSONResponse(w, stats)
}

// handleResetStatements drops all statement statistics
func (h *AdminHandlers) handleResetStatements(w http.ResponseWriter, r *http.Request) {
	h.stats.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleSessions lists connected MySQL sessions
func (h *AdminHandlers) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := []protocol.SessionInfo{}
	if h.sessions != nil {
		sessions = append(sessions, h.sessions.Sessions()...)
	}
	writeJSONResponse(w, sessions)
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// parseLimit parses limit parameter with defaults
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 256, nil // default
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}

	if limit > 1024 {
		return 0, fmt.Errorf("limit cannot exceed 1024")
	}

	return limit, nil
}
