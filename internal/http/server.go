// Package http provides the HTTP server, its router and middleware.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/orders/internal/config"
	"github.com/allisson/orders/internal/metrics"
	orderHTTP "github.com/allisson/orders/internal/order/http"
	outboxHTTP "github.com/allisson/orders/internal/outbox/http"
)

// DatabaseChecker reports whether the database answers. *sql.DB satisfies it.
type DatabaseChecker interface {
	PingContext(ctx context.Context) error
}

// DispatcherStatus reports whether the in-process outbox dispatcher is running.
type DispatcherStatus interface {
	IsRunning() bool
}

// Server represents the HTTP server.
type Server struct {
	db         DatabaseChecker
	dispatcher DispatcherStatus
	server     *http.Server
	router     *gin.Engine
	logger     *slog.Logger
}

// NewServer creates a new HTTP server. The router is built by SetupRouter.
func NewServer(
	db DatabaseChecker,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers middleware and routes.
// ctx bounds the lifetime of background work started by middleware.
// dispatcher may be nil when the dispatcher runs in a separate worker process.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	orderHandler *orderHTTP.OrderHandler,
	outboxHandler *outboxHTTP.OutboxHandler,
	dispatcher DispatcherStatus,
	metricsProvider *metrics.Provider,
) {
	s.dispatcher = dispatcher

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cors := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); cors != nil {
		router.Use(cors)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)
	router.GET("/health/outbox", s.outboxHealthHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	orders := v1.Group("/orders")
	{
		orders.POST("", orderHandler.CreateHandler)
		orders.GET("", orderHandler.ListHandler)
		orders.GET("/:id", orderHandler.GetHandler)
		orders.POST("/:id/confirm", orderHandler.ConfirmHandler)
		orders.POST("/:id/ship", orderHandler.ShipHandler)
		orders.POST("/:id/deliver", orderHandler.DeliverHandler)
		orders.POST("/:id/cancel", orderHandler.CancelHandler)
	}

	outbox := v1.Group("/outbox")
	{
		outbox.GET("/events", outboxHandler.ListHandler)
		outbox.GET("/events/:id", outboxHandler.GetHandler)
		outbox.POST("/events/:id/retry", outboxHandler.RetryHandler)
		outbox.POST("/reconcile", outboxHandler.ReconcileHandler)
		outbox.GET("/stats", outboxHandler.StatsHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler pings the database with a short deadline.
func (s *Server) readinessHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}

func (s *Server) outboxHealthHandler(c *gin.Context) {
	code, status := outboxStatus(s.dispatcher)
	c.JSON(code, gin.H{"status": status})
}

// outboxStatus maps the dispatcher state to the health check response. A nil dispatcher runs elsewhere.
func outboxStatus(dispatcher DispatcherStatus) (int, string) {
	switch {
	case dispatcher == nil:
		return http.StatusOK, "disabled"
	case dispatcher.IsRunning():
		return http.StatusOK, "running"
	default:
		return http.StatusServiceUnavailable, "stopped"
	}
}
