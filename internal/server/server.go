// Package server runs the HTTP transport.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Server wraps an *http.Server to provide start/shutdown lifecycle.
type Server struct {
	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// No write timeout: the MCP event stream and the status feed hold the
// response open for the whole session.
const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

func newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// normalizeAddr accepts "8080", ":8080" or "host:8080".
func normalizeAddr(port string) string {
	if port == "" || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// Listen binds the port. It is split from Serve so callers learn about
// bind failures before serving and can read the bound address.
func (s *Server) Listen(port string, handler http.Handler) error {
	ln, err := net.Listen("tcp", normalizeAddr(port))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.httpServer = newHTTPServer(handler)
	s.mu.Unlock()
	return nil
}

// Addr is the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()
	if srv == nil {
		return errors.New("server: Serve called before Listen")
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run listens on port and serves handler.
func (s *Server) Run(port string, handler http.Handler) error {
	if err := s.Listen(port, handler); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown gracefully stops the server, allowing in-flight requests to
// complete until ctx ends. Connections still open then are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}
