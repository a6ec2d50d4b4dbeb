package admin

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/coordinator"
	"github.com/infobridge/infobridge/protocol"
	"github.com/infobridge/infobridge/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFunc func(ctx context.Context, req query.Request) (backend.Result, error)

func (f dispatchFunc) Dispatch(ctx context.Context, req query.Request) (backend.Result, error) {
	return f(ctx, req)
}

type fixedSessions []protocol.SessionInfo

func (f fixedSessions) Sessions() []protocol.SessionInfo { return f }

func newTestRouter(t *testing.T, secret string, dispatch dispatchFunc) (http.Handler, *coordinator.StatementStats) {
	t.Helper()
	stats, err := coordinator.NewStatementStats(8)
	require.NoError(t, err)
	sessions := fixedSessions{{ConnID: 1, User: "root", Database: "Manticore", Queries: 3}}
	h := NewAdminHandlers("test-instance", dispatch, sessions, stats)
	return NewRouter(h, secret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics\n"))
	})), stats
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, "s3cret", nil)

	rec := do(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Data["status"])
	assert.Equal(t, "test-instance", body.Data["instance_id"])
}

func TestMetricsUnauthenticated(t *testing.T) {
	router, _ := newTestRouter(t, "s3cret", nil)

	rec := do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	router, _ := newTestRouter(t, "s3cret", nil)

	tests := []struct {
		name    string
		headers map[string]string
		code    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"bad format", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized},
		{"wrong secret", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"header", map[string]string{"X-Infobridge-Secret": "s3cret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/sessions", "", tt.headers)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	router, _ := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodGet, "/sessions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []protocol.SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Manticore", body.Data[0].Database)
	assert.Equal(t, uint64(3), body.Data[0].Queries)
}

func TestSQL(t *testing.T) {
	var got query.Request
	router, _ := newTestRouter(t, "", func(_ context.Context, req query.Request) (backend.Result, error) {
		got = req
		return backend.NewResult(
			[]backend.Column{{Name: "Value", Type: "string"}},
			[]backend.Row{{"Value": "6.3.6"}},
		), nil
	})

	rec := do(t, router, http.MethodPost, "/sql",
		`{"payload":"SELECT version()","error":"","path":"sql?mode=raw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, query.Request{Payload: "SELECT version()", Path: "sql?mode=raw"}, got)
	assert.JSONEq(t,
		`[{"columns":[{"Value":{"type":"string"}}],"data":[{"Value":"6.3.6"}],"total":1,"error":"","warning":""}]`,
		rec.Body.String())
}

func TestSQLBackendErrorIsData(t *testing.T) {
	router, _ := newTestRouter(t, "", func(_ context.Context, req query.Request) (backend.Result, error) {
		return backend.ErrorResult(req.Error), nil
	})

	rec := do(t, router, http.MethodPost, "/sql", `{"payload":"SELECT * FROM t","error":"boom"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res, err := backend.DecodeResult(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "boom", res.ErrorMessage())
}

func TestSQLErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"invalid json", `{"payload":`, nil, http.StatusBadRequest},
		{"missing payload", `{}`, nil, http.StatusBadRequest},
		{"classification", `{"payload":"SELECT 1"}`, query.NewClassificationError("no table"), http.StatusBadRequest},
		{"fatal rewrite", `{"payload":"SELECT 1"}`, query.NewFatalRewriteError("unsupported method %s", "now()"), http.StatusInternalServerError},
		{"transport", `{"payload":"SELECT 1"}`, &backend.APIError{Code: 502, Message: "down"}, http.StatusBadGateway},
		{"canceled", `{"payload":"SELECT 1"}`, context.Canceled, http.StatusServiceUnavailable},
		{"other", `{"payload":"SELECT 1"}`, errors.New("odd"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, "", func(context.Context, query.Request) (backend.Result, error) {
				return nil, tt.err
			})

			rec := do(t, router, http.MethodPost, "/sql", tt.body, nil)
			assert.Equal(t, tt.code, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStatements(t *testing.T) {
	router, stats := newTestRouter(t, "", nil)
	stats.Record("SELECT * FROM t WHERE id = 1", "backend", time.Millisecond, false, false)
	stats.Record("SELECT * FROM t WHERE id = 2", "backend", time.Millisecond, false, false)
	stats.Record("SELECT VERSION()", "method", time.Millisecond, false, false)

	rec := do(t, router, http.MethodGet, "/statements?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []coordinator.StatementStat `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "select * from t where id = ?", body.Data[0].Fingerprint)
	assert.Equal(t, uint64(2), body.Data[0].Hits)

	rec = do(t, router, http.MethodGet, "/statements?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodDelete, "/statements", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, stats.TrackedCount())
}

func TestGzipLargeResponses(t *testing.T) {
	big := make([]backend.Row, 200)
	for i := range big {
		big[i] = backend.Row{"title": strings.Repeat("x", 32)}
	}
	router, _ := newTestRouter(t, "", func(context.Context, query.Request) (backend.Result, error) {
		return backend.NewResult([]backend.Column{{Name: "title", Type: "string"}}, big), nil
	})

	rec := do(t, router, http.MethodPost, "/sql", `{"payload":"SELECT title FROM t"}`,
		map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)

	res, err := backend.DecodeResult(plain)
	require.NoError(t, err)
	assert.Len(t, res.Rows(), 200)
}

func TestServerStartStop(t *testing.T) {
	router, _ := newTestRouter(t, "", nil)
	srv := NewServer("127.0.0.1:0", router)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
