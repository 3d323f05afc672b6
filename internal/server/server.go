// Package server runs the HTTP listener for the file server.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
)

// Listen binds a TCP listener on addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Server serves an http.Handler on a listener until its context ends.
type Server struct {
	handler http.Handler
	stdout  io.Writer
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStdout sets where the startup line is written. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(s *Server) {
		s.stdout = w
	}
}

// WithLogger sets the logger for server and connection errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New returns a Server for handler.
func New(handler http.Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		stdout:  os.Stdout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve prints the startup line for ln and serves connections, each on its
// own goroutine, until ctx is cancelled. In-flight requests are not
// drained. Serve closes ln and returns nil after cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:  s.handler,
		ErrorLog: stdLogger(s.logger),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	banner := color.New(color.Bold)
	if _, err := banner.Fprintf(s.stdout, "Serving on port %d\n", Port(ln)); err != nil {
		ln.Close()
		return fmt.Errorf("failed to write startup message: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Close()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// Port returns the TCP port ln is bound to, or 0 for non-TCP listeners.
func Port(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// stdLogger adapts a slog.Logger for APIs that want a *log.Logger.
func stdLogger(logger *slog.Logger) *log.Logger {
	return slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
}
