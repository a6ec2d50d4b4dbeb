package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Server runs the admin HTTP API
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
}

// NewServer creates a server for address serving handler
func NewServer(address string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		done: make(chan struct{}),
	}
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = l

	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Admin server failed")
		}
	}()

	log.Info().Str("address", l.Addr().String()).Msg("Admin HTTP server listening")
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	<-s.done
	log.Info().Msg("Admin HTTP server stopped")
	return err
}
