// Package server exposes a read-only HTTP surface over a running
// coordination: state, history, handoff metrics, and Prometheus
// metrics. It never mutates the run.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyrsmithlabs/crewd/internal/coordinator"
	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/roles"
	"github.com/fyrsmithlabs/crewd/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Observer is the read-only slice of the coordinator the server needs.
type Observer interface {
	ExecutionContext() coordinator.ExecutionContext
	WorkflowState() coordinator.WorkflowState
	CommunicationHistory() []message.Message
	HandoffMetrics() coordinator.HandoffMetrics
	ValidateHandoffExecution() session.HandoffReport
	AgentStates() []roles.StateSnapshot
}

// Server serves the observation endpoints.
type Server struct {
	addr     string
	echo     *echo.Echo
	observer Observer
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StateResponse bundles everything a dashboard needs in one call.
type StateResponse struct {
	Context  coordinator.ExecutionContext `json:"context"`
	Workflow coordinator.WorkflowState    `json:"workflow"`
	Agents   []roles.StateSnapshot        `json:"agents"`
	Handoffs coordinator.HandoffMetrics   `json:"handoffs"`
}

// New builds the server over a coordinator.
func New(addr string, observer Observer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{addr: addr, echo: e, observer: observer}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/v1/state", s.handleState)
	s.echo.GET("/v1/history", s.handleHistory)
	s.echo.GET("/v1/handoffs", s.handleHandoffs)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "crewd"})
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, StateResponse{
		Context:  s.observer.ExecutionContext(),
		Workflow: s.observer.WorkflowState(),
		Agents:   s.observer.AgentStates(),
		Handoffs: s.observer.HandoffMetrics(),
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, session.RecordMessages(s.observer.CommunicationHistory()))
}

func (s *Server) handleHandoffs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.observer.ValidateHandoffExecution())
}

// Start serves until the context is cancelled, then shuts down
// gracefully. Returns http.ErrServerClosed on clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo exposes the router for additional routes.
func (s *Server) Echo() *echo.Echo { return s.echo }
