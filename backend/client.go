package backend

import (
	"context"
	"time"

	"github.com/infobridge/infobridge/telemetry"
)

// Client sends one statement to the backend and returns its reply.
type Client interface {
	Send(ctx context.Context, query string) (Result, error)
	// WithPath returns a client bound to the given routing path. An empty
	// path keeps the configured default.
	WithPath(path string) Client
}

// Func adapts a function to Client. The routing path is ignored.
type Func func(ctx context.Context, query string) (Result, error)

func (f Func) Send(ctx context.Context, query string) (Result, error) {
	return f(ctx, query)
}

func (f Func) WithPath(string) Client {
	return f
}

func observe(start time.Time, res Result, err error) {
	telemetry.BackendRequestSeconds.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		telemetry.BackendRequestsTotal.With("transport_error").Inc()
	case res.ErrorMessage() != "":
		telemetry.BackendRequestsTotal.With("error").Inc()
	default:
		telemetry.BackendRequestsTotal.With("ok").Inc()
	}
}
