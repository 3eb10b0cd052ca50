// Package server exposes the chart query API over HTTP.
package server

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"dexcharts/internal/observability"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Addr string // bind address, e.g. ":8090"

	// Metrics is optional; nil disables request recording.
	Metrics *observability.Metrics
}

// Server wraps Echo with lifecycle management.
type Server struct {
	e   *echo.Echo
	cfg Config
}

// New creates the HTTP server and registers all routes.
func New(h *Handlers, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	if cfg.Metrics != nil {
		e.Use(requestMetrics(cfg.Metrics))
	}

	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	registerRoutes(e, h)

	return &Server{e: e, cfg: cfg}
}

// Start begins serving HTTP requests on the configured address.
func (s *Server) Start() error {
	return s.e.Start(s.cfg.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// requestMetrics records request counts and latency by route template.
func requestMetrics(m *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			m.APIRequests.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
			m.APILatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func registerRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", h.Health)
	e.GET("/status", h.Status)
	e.GET("/pairs", h.Pairs)

	// Pair keys contain a slash, so pairs travel as (base, quote) segments.
	e.GET("/candles/:base/:quote/:tf", h.Candles)
	e.GET("/price/:base/:quote", h.Price)
	e.GET("/stats/:base/:quote", h.PairStats)
}
