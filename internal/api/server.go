package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/doorwatch/internal/history"
	"github.com/nerrad567/doorwatch/internal/infrastructure/config"
	"github.com/nerrad567/doorwatch/internal/infrastructure/logging"
	"github.com/nerrad567/doorwatch/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DoorMonitor is the part of sensor.Monitor the API reads from.
type DoorMonitor interface {
	Status() sensor.State
	Snapshot() sensor.Snapshot
	Refresh(ctx context.Context) (sensor.State, bool)
	Running() bool
}

// HealthChecker is implemented by infrastructure clients (database, MQTT, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Monitor  DoorMonitor
	History  history.Repository // optional
	Hub      *Hub               // optional; created when nil
	DeviceID string
	Checks   map[string]HealthChecker
	Version  string
}

// Server is the HTTP API server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	monitor  DoorMonitor
	history  history.Repository
	hub      *Hub
	deviceID string
	checks   map[string]HealthChecker
	version  string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("door monitor is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.Config.WebSocket, deps.Logger)
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		monitor:  deps.Monitor,
		history:  deps.History,
		hub:      hub,
		deviceID: deps.DeviceID,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Hub returns the WebSocket hub so it can be registered as an observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
//
// Binding happens synchronously so a port conflict is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
