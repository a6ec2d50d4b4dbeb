package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path  string
	query string
	mode  string
	auth  string
	ctype string
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured.path = r.URL.Path
		captured.mode = r.URL.Query().Get("mode")
		captured.query = r.PostForm.Get("query")
		captured.auth = r.Header.Get("Authorization")
		captured.ctype = r.Header.Get("Content-Type")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestHTTPClientSend(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `[{"columns":[{"Value":{"type":"string"}}],"data":[{"Value":"6.3.0"}],"total":1,"error":"","warning":""}]`)

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL, BearerToken: "tok"})
	require.NoError(t, err)

	res, err := client.Send(context.Background(), "show status like 'mysql_version'")
	require.NoError(t, err)
	assert.Equal(t, "6.3.0", res.Rows()[0]["Value"])

	assert.Equal(t, "/sql", captured.path)
	assert.Equal(t, "raw", captured.mode)
	assert.Equal(t, "show status like 'mysql_version'", captured.query)
	assert.Equal(t, "Bearer tok", captured.auth)
	assert.Equal(t, "application/x-www-form-urlencoded", captured.ctype)
}

func TestHTTPClientWithPath(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `[]`)

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	routed := client.WithPath("cli_json")
	_, err = routed.Send(context.Background(), "SHOW TABLES")
	require.NoError(t, err)
	assert.Equal(t, "/cli_json", captured.path)

	assert.Same(t, client, client.WithPath(""))
	assert.Equal(t, DefaultPath, client.Path())
}

func TestHTTPClientBackendErrorIsData(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, `{"error":"unsupported filter type 'string' on attribute 'title'"}`)

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	res, err := client.Send(context.Background(), "SELECT * FROM t WHERE title = 1")
	require.NoError(t, err)
	assert.Contains(t, res.ErrorMessage(), "unsupported filter type 'string'")
}

func TestHTTPClientTransportErrors(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadGateway, "upstream down")

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "SELECT 1")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Code)
	assert.Contains(t, apiErr.Message, "upstream down")

	okSrv, _ := newTestServer(t, http.StatusOK, "not json")
	client, err = NewHTTPClient(HTTPConfig{Endpoint: okSrv.URL})
	require.NoError(t, err)
	_, err = client.Send(context.Background(), "SELECT 1")
	require.Error(t, err)
	require.True(t, errors.As(err, &apiErr))
}

func TestHTTPClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client, err := NewHTTPClient(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Send(ctx, "SELECT 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewHTTPClientInvalidEndpoint(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{Endpoint: "127.0.0.1:9308"})
	require.Error(t, err)
}

func TestFuncClient(t *testing.T) {
	var got string
	f := Func(func(ctx context.Context, q string) (Result, error) {
		got = q
		return ErrorResult("nope"), nil
	})

	res, err := f.WithPath("anything").Send(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
	assert.Equal(t, "nope", res.ErrorMessage())
}
