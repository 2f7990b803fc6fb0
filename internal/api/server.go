// Package api exposes the insight pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cleared-dev/spendwise/internal/buildinfo"
	"github.com/cleared-dev/spendwise/internal/pipeline"
)

// Config holds API server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client; 0 disables
	Burst          int
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RateLimit:      5,
		Burst:          10,
	}
}

// Server is the HTTP API server.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	gatherer prometheus.Gatherer
	router   *gin.Engine
	logger   *slog.Logger
	limiter  *clientLimiter
}

// NewServer wires routes around p. gatherer backs GET /metrics and may be nil.
func NewServer(cfg Config, p *pipeline.Pipeline, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		gatherer: gatherer,
		router:   gin.New(),
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, max(cfg.Burst, 1))
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger, "/health"))
	s.router.Use(cors.New(corsConfig(s.cfg.AllowedOrigins)))
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	if s.limiter != nil {
		api.Use(s.limiter.middleware())
	}
	{
		api.POST("/insights", s.createInsights)
		api.POST("/insights/stream", s.streamInsights)
	}
}

// Router returns the HTTP handler, for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", s.cfg.Addr, "version", buildinfo.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}
