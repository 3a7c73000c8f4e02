// Package server runs an http.Handler until its context ends, then drains
// requests and releases registered components.
package server

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

// ShutdownFunc releases one component.
type ShutdownFunc func(ctx context.Context) error

type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type hook struct {
	name string
	fn   ShutdownFunc
}

// Server is an http.Server with ordered component shutdown.
type Server struct {
	http    *http.Server
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	hooks []hook
	addr  net.Addr
}

func New(handler http.Handler, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		timeout: cfg.ShutdownTimeout,
		logger:  logger,
	}
}

// OnShutdown registers fn to run after the listener has drained. Hooks run
// last-registered first, so a component is released before whatever it
// was built on.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
	s.mu.Unlock()
}

// Run listens and serves until ctx is done or serving fails, then shuts
// down. A port that cannot be bound is reported before anything is served.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Join(fmt.Errorf("listen %s: %w", s.http.Addr, err), s.Shutdown())
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		serveErr <- s.http.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return s.Shutdown()
		}
		return errors.Join(fmt.Errorf("serve: %w", err), s.Shutdown())
	case <-ctx.Done():
		s.logger.Info("stopping", "cause", context.Cause(ctx))
		return s.Shutdown()
	}
}

// Shutdown drains the listener within the shutdown timeout, then runs the
// hooks. Every hook runs even if an earlier step failed; all failures are
// returned joined. Hooks run at most once.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var errs []error
	s.http.SetKeepAlivesEnabled(false)
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}

	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", "component", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		s.logger.Debug("component stopped", "component", h.name)
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("stopped cleanly")
	return nil
}

// Addr is the bound listener address once Run has started, else the
// configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != nil {
		return s.addr.String()
	}
	return s.http.Addr
}
