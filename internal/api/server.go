package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceRegistrar registers devices by address.
type DeviceRegistrar interface {
	Register(ctx context.Context, address string, meta device.Metadata) (*device.Device, error)
}

// DeviceQuerier reads devices.
type DeviceQuerier interface {
	GetAll(ctx context.Context) ([]device.Device, error)
	Find(ctx context.Context, filter device.DeviceFilter) ([]device.Device, error)
	GetByID(ctx context.Context, id string) (*device.Device, error)
}

// DeviceUpdater applies partial device updates.
type DeviceUpdater interface {
	Update(ctx context.Context, id string, patch *device.Patch) (*device.Device, error)
}

// DataService appends and queries device data.
type DataService interface {
	Add(ctx context.Context, deviceID, name, value, unit string) (*device.DeviceData, error)
	Find(ctx context.Context, filter device.DataFilter) ([]device.DeviceData, error)
	Get(ctx context.Context, id string) (*device.DeviceData, error)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	// Development adds error detail to 500 responses.
	Development bool
	Logger      *logging.Logger

	Registration DeviceRegistrar
	Query        DeviceQuerier
	Update       DeviceUpdater
	Data         DataService

	// Store is optional; without it /health reports the API only.
	Store HealthChecker
	// Hub is optional; New creates one when nil.
	Hub     *Hub
	Version string
}

// Server is the HTTP API server for devicehub.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	development bool
	logger      *logging.Logger

	registration DeviceRegistrar
	query        DeviceQuerier
	update       DeviceUpdater
	data         DataService
	store        HealthChecker

	version     string
	server      *http.Server
	listener    net.Listener
	errs        chan error // receives a serve failure after Start
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but Handler() is
// usable immediately.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registration == nil || deps.Query == nil || deps.Update == nil {
		return nil, fmt.Errorf("device services are required")
	}
	if deps.Data == nil {
		return nil, fmt.Errorf("data service is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		development:  deps.Development,
		logger:       deps.Logger.Component("api"),
		registration: deps.Registration,
		query:        deps.Query,
		update:       deps.Update,
		data:         deps.Data,
		store:        deps.Store,
		version:      deps.Version,
		hub:          deps.Hub,
		errs:         make(chan error, 1),
	}

	if s.hub != nil {
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, s.logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub fed by stored device data.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so an address already in use
// fails here. Serving then continues in a background goroutine; a later
// serve failure is delivered on Err. Stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
			s.errs <- fmt.Errorf("serving API: %w", err)
		}
	}()

	return nil
}

// Err delivers at most one error if the server stops serving on its own.
// It is never closed.
func (s *Server) Err() <-chan error {
	return s.errs
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
