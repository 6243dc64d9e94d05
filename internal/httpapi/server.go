// Package httpapi provides the HTTP API for eventparsed.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
	"github.com/JacoLabs/eventparse/internal/pipeline"
	"github.com/JacoLabs/eventparse/internal/validate"
)

// Server exposes the extraction pipeline over HTTP.
type Server struct {
	echo     *echo.Echo
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	config   config.ServerConfig
}

// NewServer creates the HTTP server around a pipeline.
func NewServer(p *pipeline.Pipeline, logger *zap.Logger, cfg config.ServerConfig) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: p,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and operational endpoints
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/parse", s.handleParse)
	v1.GET("/cache/stats", s.handleCacheStats)
}

// ParseRequest is the request body for POST /api/v1/parse.
type ParseRequest struct {
	Text string `json:"text"`
	// Timezone is an IANA zone name; temporal values resolve in it.
	Timezone string `json:"timezone,omitempty"`
	Locale   string `json:"locale,omitempty"`
	// ReferenceTime anchors relative expressions like "tomorrow".
	// RFC3339; defaults to the server's current time.
	ReferenceTime string `json:"reference_time,omitempty"`
	// Fields restricts extraction to a subset of field names.
	Fields []string `json:"fields,omitempty"`
	// Audit includes the per-tier routing trace in the response.
	Audit bool `json:"audit,omitempty"`
}

// ParseResponse is the response body for POST /api/v1/parse.
type ParseResponse struct {
	Event *event.ParsedEvent `json:"event"`
	Audit *event.AuditRecord `json:"audit,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleParse runs one extraction request through the pipeline. Only
// malformed input yields a 400; dependency failures surface as partial
// results with warnings, never as errors.
func (s *Server) handleParse(c echo.Context) error {
	var req ParseRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid parse request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	preq := pipeline.Request{
		Text:     req.Text,
		Timezone: req.Timezone,
		Locale:   req.Locale,
		Audit:    req.Audit,
	}
	if req.ReferenceTime != "" {
		ref, err := time.Parse(time.RFC3339, req.ReferenceTime)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "reference_time must be RFC3339")
		}
		preq.ReferenceTime = ref
	}
	for _, name := range req.Fields {
		preq.Fields = append(preq.Fields, event.Field(name))
	}

	result, audit, err := s.pipeline.Parse(c.Request().Context(), preq)
	if err != nil {
		if isInputError(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("parse failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	resp := ParseResponse{Event: result}
	if req.Audit {
		resp.Audit = audit
	}
	return c.JSON(http.StatusOK, resp)
}

// handleCacheStats exposes result-cache counters.
func (s *Server) handleCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.pipeline.CacheStats())
}

// isInputError reports whether err is the caller's fault.
func isInputError(err error) bool {
	return errors.Is(err, validate.ErrEmptyText) ||
		errors.Is(err, validate.ErrTextTooLarge) ||
		errors.Is(err, validate.ErrBadTimezone) ||
		errors.Is(err, validate.ErrBadReference) ||
		errors.Is(err, pipeline.ErrUnknownField)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
