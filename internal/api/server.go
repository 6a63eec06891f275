// Package api serves the notification bus over HTTP: REST operations for
// both panels plus SSE and WebSocket change streams.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	mw "github.com/aerodesk/aerodesk/internal/api/middleware"
	"github.com/aerodesk/aerodesk/internal/buildinfo"
	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/notification"
	"github.com/aerodesk/aerodesk/internal/observability"
)

const (
	apiPrefix       = "/api/v1"
	shutdownTimeout = 10 * time.Second
	countsCacheTTL  = 5 * time.Second
	countsCacheKey  = "counts"
	bodyLimit       = "64K"
	healthTimeout   = 2 * time.Second
)

// Server is the HTTP front end of the notification bus.
type Server struct {
	echo     *echo.Echo
	service  *notification.Service
	settings conf.WebServerSettings
	build    *buildinfo.Context
	metrics  *observability.Metrics
	logger   logger.Logger

	counts      *cache.Cache
	hub         *wsHub
	unsubscribe func()
	startTime   time.Time

	// closing ends open SSE streams so Shutdown does not wait them out.
	closing   chan struct{}
	closeOnce sync.Once
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the module logger for the server.
func WithLogger(log logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = log
	}
}

// WithMetrics exposes /metrics from m.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuildInfo sets the build metadata reported by /health.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) {
		s.build = b
	}
}

// New creates a server for service. Call Close when done with it, or let
// Start do so on shutdown.
func New(service *notification.Service, settings conf.WebServerSettings, opts ...ServerOption) *Server {
	s := &Server{
		service:   service,
		settings:  settings,
		counts:    cache.New(countsCacheTTL, 0),
		startTime: time.Now(),
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Global().Module("api")
	}
	if s.build == nil {
		s.build = buildinfo.NewContext("", "", buildinfo.UnknownValue)
	}
	s.hub = newWSHub(s.logger)

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.setupMiddleware()
	s.setupRoutes()

	s.unsubscribe = service.Subscribe(s.onChange)
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.logger, func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	}))
	s.echo.Use(echomw.BodyLimit(bodyLimit))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	g := s.echo.Group(apiPrefix)
	g.GET("/health", s.healthCheck)

	streamLimiter := mw.NewStreamRateLimiter(s.settings.Stream.RateLimit)

	g.GET("/notifications", s.listNotifications)
	g.POST("/notifications", s.createNotification)
	g.DELETE("/notifications", s.clearAll)
	g.GET("/notifications/counts", s.getCounts)
	g.GET("/notifications/stream", s.streamChanges, streamLimiter)
	g.GET("/notifications/ws", s.websocketChanges, streamLimiter)
	g.GET("/notifications/:id", s.getNotification)
	g.POST("/notifications/:id/acknowledge", s.acknowledge)
	g.POST("/notifications/:id/accept", s.accept)
	g.PUT("/notifications/:id/status", s.setStatus)
	g.DELETE("/notifications/:id", s.deleteNotification)

	g.GET("/panels/:panel/notifications", s.panelNotifications)
	g.GET("/panels/:panel/counts", s.panelCounts)
	g.DELETE("/panels/:panel/notifications", s.clearPanel)
	g.DELETE("/panels/:panel/notifications/:id", s.removeFromPanel)
}

// onChange runs on the publishing goroutine and must not block.
func (s *Server) onChange() {
	s.counts.Delete(countsCacheKey)
	s.hub.broadcastRefresh()
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", logger.String("address", s.settings.Listen))
		if err := s.echo.Start(s.settings.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}
	return s.Shutdown()
}

// Shutdown stops accepting requests, closes open streams and waits for
// in-flight requests.
func (s *Server) Shutdown() error {
	s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", logger.Error(err))
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Close detaches the server from the service and closes WebSocket clients.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		close(s.closing)
		s.hub.close()
	})
}

// healthCheck reports 503 when the backing store does not answer.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	body := map[string]any{
		"status":         "healthy",
		"version":        s.build.Version(),
		"build_date":     s.build.BuildDate(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()
	if err := s.service.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", logger.Error(err))
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}
