package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/hydroponics-core/internal/audit"
	"github.com/nerrad567/hydroponics-core/internal/auth"
	"github.com/nerrad567/hydroponics-core/internal/hydro"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/config"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/database"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// PrincipalResolver identifies the caller of a request.
// *auth.Authenticator is the production implementation.
type PrincipalResolver interface {
	Resolve(r *http.Request) (hydro.Principal, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Logger        *logging.Logger
	Service       *hydro.Service
	Auth          *auth.Service
	Authenticator PrincipalResolver
	AuditRepo     audit.Repository // optional: disables GET /audit when nil
	Recorder      *audit.Recorder  // optional: login events are not recorded when nil
	DB            *database.DB     // optional: health and pool metrics
	Hub           *Hub             // if set, the caller owns the hub and has registered it as a sink
	Version       string
}

// Server is the HTTP API server for Hydroponics Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	service     *hydro.Service
	auth        *auth.Service
	resolver    PrincipalResolver
	auditRepo   audit.Repository
	recorder    *audit.Recorder
	db          *database.DB
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool
	metrics     *Metrics
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// Unless deps.Hub is set, New creates the WebSocket hub and registers it
// with the service as a measurement sink. The metrics collector is always
// registered as a sink. The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("hydro service is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		service:   deps.Service,
		auth:      deps.Auth,
		resolver:  deps.Authenticator,
		auditRepo: deps.AuditRepo,
		recorder:  deps.Recorder,
		db:        deps.DB,
		version:   deps.Version,
		tickets:   newTicketStore(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
		deps.Service.AddSink(s.hub)
	}

	s.metrics = NewMetrics(s.hub, deps.DB)
	deps.Service.AddSink(s.metrics)

	return s, nil
}

// Metrics returns the server's Prometheus collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected), the ticket cleanup loop and
// the HTTP listener in background goroutines. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
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
