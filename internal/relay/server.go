// ABOUTME: Loopback HTTP server hosting the authorization callback page
// ABOUTME: Listens on the configured address and shuts down gracefully

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrServerStarted is returned by Start on a running server.
var ErrServerStarted = errors.New("callback server already started")

// Server serves a handler at a fixed path on a local address.
type Server struct {
	mu     sync.Mutex
	addr   string
	srv    *http.Server
	ln     net.Listener
	done   chan struct{}
	logger *slog.Logger
}

// NewServer mounts handler at path. Pass nil logger for default.
func NewServer(addr, path string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "callback_server"),
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return ErrServerStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on callback address: %w", err)
	}
	s.ln = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info("callback server listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server failed", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.ln != nil
	done := s.done
	s.mu.Unlock()

	if !started {
		return nil
	}

	s.logger.Info("shutting down callback server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("callback server shutdown: %w", err)
	}
	<-done
	return nil
}
