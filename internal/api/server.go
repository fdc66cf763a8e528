package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wburgers/zwave-hub/internal/hub"
	"github.com/wburgers/zwave-hub/internal/infrastructure/config"
	"github.com/wburgers/zwave-hub/internal/infrastructure/logging"
	"github.com/wburgers/zwave-hub/internal/registry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds each component probe in the health handler.
const healthCheckTimeout = 5 * time.Second

// HealthChecker reports whether a component is functioning. The
// controller session, MQTT bridge, and telemetry writer all satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WSPath   string
	Logger   *logging.Logger
	Registry *registry.Registry
	Hub      *hub.Hub

	// Checks maps component names to health probes, reported by the
	// health endpoint. Optional components are simply absent.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP server hosting the WebSocket endpoint, the health
// endpoint, and the read-only registry snapshots.
type Server struct {
	cfg      config.APIConfig
	wsPath   string
	logger   *logging.Logger
	registry *registry.Registry
	hub      *hub.Hub
	checks   map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates an API server with the given dependencies. The server is
// not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("device registry is required")
	}
	if deps.Hub == nil {
		return nil, errors.New("client hub is required")
	}

	wsPath := deps.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}

	return &Server{
		cfg:      deps.Config,
		wsPath:   wsPath,
		logger:   deps.Logger,
		registry: deps.Registry,
		hub:      deps.Hub,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Start builds the router and launches the HTTP listener in a
// background goroutine. The server is stopped with Close.
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("api server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("api server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to the shutdown timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}

	return nil
}
