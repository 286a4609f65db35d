package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServerConfig is read from the METRICS_* environment.
type ServerConfig struct {
	Port            int           `env:"METRICS_PORT" envDefault:"9090"`
	Timeout         time.Duration `env:"METRICS_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"METRICS_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Server exposes a Registry on /metrics next to /health and /ready probes.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger

	ready chan struct{}
	mu    sync.Mutex
	addr  string
}

func NewServer(config ServerConfig, registry *Registry, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      newMux(registry),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  config.Timeout * 2,
		},
		shutdownTimeout: config.ShutdownTimeout,
		logger:          logger.Named("metrics-server"),
		ready:           make(chan struct{}),
		addr:            fmt.Sprintf(":%d", config.Port),
	}
}

// Run serves until ctx is done, then shuts down within the configured timeout.
// A Server runs at most once.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		s.logger.Info("metrics server stopped")
		return nil
	})

	return g.Wait()
}

// Ready is closed once Run is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the configured address, or the bound one once Ready is closed.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addr
}

func newMux(registry *Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.HandleFunc("/health", statusHandler(`{"status":"healthy","service":"ypapub-metrics"}`))
	mux.HandleFunc("/ready", statusHandler(`{"status":"ready","service":"ypapub-metrics"}`))

	return mux
}

func statusHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}
