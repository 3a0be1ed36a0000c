package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/optix-bridge/optix-bridge/internal/conf"
	"github.com/optix-bridge/optix-bridge/internal/identity"
	"github.com/optix-bridge/optix-bridge/internal/ingest"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability"
	"github.com/optix-bridge/optix-bridge/internal/processor"
	"github.com/optix-bridge/optix-bridge/internal/tracking"
)

// Server is the admin HTTP server. Every dependency is optional; routes whose
// dependency is missing answer 503.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	store     *identity.Store
	repo      identity.Repository
	tracks    *tracking.Cache
	ingest    *ingest.Service
	processor *processor.Processor
	metrics   *observability.Metrics

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithIdentities exposes store; repo is used by the save and reload endpoints.
func WithIdentities(store *identity.Store, repo identity.Repository) ServerOption {
	return func(s *Server) {
		s.store = store
		s.repo = repo
	}
}

func WithTracks(cache *tracking.Cache) ServerOption {
	return func(s *Server) { s.tracks = cache }
}

func WithIngest(svc *ingest.Service) ServerOption {
	return func(s *Server) { s.ingest = svc }
}

func WithProcessor(p *processor.Processor) ServerOption {
	return func(s *Server) { s.processor = p }
}

func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithSettings enables GET /api/v1/config.
func WithSettings(settings *conf.Settings) ServerOption {
	return func(s *Server) { s.settings = settings }
}

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// New creates the server and registers all routes. It does not listen.
func New(config *Config, opts ...ServerOption) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config:    config,
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(newRequestLogger(s.log))
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/config", s.getConfig)

	s.initIdentityRoutes(v1.Group("/identities"))
	s.initTrackRoutes(v1.Group("/tracks"))
	s.initIngestRoutes(v1)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve is Run with a caller-provided listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.echo.Listener = lis
	s.log.Info("admin API listening", logger.String("address", lis.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.echo.Shutdown(shutdownCtx)
	if startErr := <-errCh; startErr != nil && !errors.Is(startErr, http.ErrServerClosed) && err == nil {
		err = startErr
	}
	s.log.Info("admin API stopped")
	return err
}

// healthCheck reports liveness and a summary of every component.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)

	resp := map[string]any{
		"status":         "healthy",
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if s.store != nil {
		resp["identities"] = s.store.Len()
	}
	if s.tracks != nil {
		resp["tracks"] = s.tracks.Len()
	}
	if s.ingest != nil {
		stats := s.ingest.Stats()
		resp["ingest"] = stats
		if !stats.Running {
			resp["status"] = "degraded"
		}
	}
	if s.processor != nil {
		resp["processor"] = s.processor.Stats()
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getConfig(c echo.Context) error {
	if s.settings == nil {
		return s.unavailable(c, "configuration")
	}
	out, err := conf.RedactedYAML(s.settings)
	if err != nil {
		return s.HandleError(c, err, "failed to render configuration", http.StatusInternalServerError)
	}
	return c.Blob(http.StatusOK, "application/yaml", out)
}
