// Package httpapi exposes the agent over HTTP: health probes, a
// synchronous run endpoint and a streaming run endpoint using
// Server-Sent Events.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verifyd/internal/agent"
	"github.com/fyrsmithlabs/verifyd/internal/contract"
	"github.com/fyrsmithlabs/verifyd/internal/events"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes one agent process over HTTP.
type Server struct {
	echo   *echo.Echo
	agent  *agent.Agent
	mirror events.Sink
	logger *zap.Logger
	config Config
}

// NewServer creates the HTTP server. The mirror sink is optional; when
// set, streaming runs also publish their events there.
func NewServer(cfg Config, a *agent.Agent, mirror events.Sink, logger *zap.Logger) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 9300
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

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
		echo:   e,
		agent:  a,
		mirror: mirror,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/health/ready", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	run := s.echo.Group("/agents/run")
	run.POST("/sync", s.handleRunSync)
	run.POST("/stream", s.handleRunStream)
}

// HealthResponse is the body for the health probes.
type HealthResponse struct {
	Status    string   `json:"status"`
	TaskTypes []string `json:"task_types,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleReady(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		TaskTypes: s.agent.TaskTypes(),
	})
}

// handleRunSync executes one envelope request and returns the envelope
// response. Contract-level failures travel inside the envelope with
// HTTP 200; only an unparsable body earns a 400.
func (s *Server) handleRunSync(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, contract.Fail("", contract.NewError(
			contract.CodeValidation, "request body is not a valid envelope", nil)))
	}

	resp := s.agent.Run(c.Request().Context(), req)
	return c.JSON(http.StatusOK, resp)
}

// handleRunStream executes one envelope request, emitting progress via
// Server-Sent Events. The terminal event ("completed", or "error" for
// error-status envelopes) wraps the same envelope the sync endpoint
// would have returned.
func (s *Server) handleRunStream(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, contract.Fail("", contract.NewError(
			contract.CodeValidation, "request body is not a valid envelope", nil)))
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)

	ch := make(chan events.Event, 16)
	sink := events.Multi(events.SinkFunc(func(e events.Event) { ch <- e }), s.mirror)

	go func() {
		defer close(ch)
		s.agent.RunStream(c.Request().Context(), req, sink)
	}()

	for event := range ch {
		data, err := json.Marshal(event)
		if err != nil {
			s.logger.Warn("marshal stream event failed", zap.Error(err))
			continue
		}
		fmt.Fprintf(c.Response(), "event: %s\n", event.Type)
		fmt.Fprintf(c.Response(), "data: %s\n\n", data)
		c.Response().Flush()
	}
	return nil
}

func bindRequest(c echo.Context) (*contract.Request, error) {
	var req contract.Request
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	return &req, nil
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

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
