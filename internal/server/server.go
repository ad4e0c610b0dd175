// Package server exposes the audit runner over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/engine"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/metrics"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/store"
	"github.com/pankaj-dahiya-devops/infraaudit/internal/version"
)

// ShutdownTimeout bounds how long in-flight requests may take after the
// server is asked to stop.
const ShutdownTimeout = 10 * time.Second

// StartRequest is the body of POST /api/audit/start.
type StartRequest struct {
	AccountID  string   `json:"account_id"`
	RoleName   string   `json:"role_name,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
	Checks     []string `json:"checks,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	AuditID string `json:"audit_id,omitempty"`
}

// Server serves the audit API.
type Server struct {
	log     logrus.FieldLogger
	runner  engine.Runner
	checks  func() []string
	metrics *metrics.Metrics
	echo    *echo.Echo
}

// New builds the echo instance and registers every route. checks lists the
// registered check names for GET /api/audit/checks.
func New(log logrus.FieldLogger, runner engine.Runner, checks func() []string, m *metrics.Metrics) *Server {
	s := &Server{
		log:     log.WithField("component", "server"),
		runner:  runner,
		checks:  checks,
		metrics: m,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.requestLogger())

	s.RegisterHandlers(e)
	s.echo = e
	return s
}

// RegisterHandlers binds the API routes on e.
func (s *Server) RegisterHandlers(e *echo.Echo) {
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api/audit")
	api.POST("/start", s.startAudit)
	api.GET("/status/:audit_id", s.auditStatus)
	api.GET("/checks", s.listChecks)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"build":  version.Get(),
	})
}

func (s *Server) startAudit(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid request body"})
	}
	if req.AccountID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "account_id is required"})
	}

	// An audit runs to completion once started; a client disconnect must not
	// turn the remaining checks into ERROR results.
	ctx := context.WithoutCancel(c.Request().Context())
	rec, err := s.runner.RunAudit(ctx, engine.AuditOptions{
		AccountID:  req.AccountID,
		RoleName:   req.RoleName,
		ExternalID: req.ExternalID,
		Checks:     req.Checks,
	})
	if err != nil {
		resp := ErrorResponse{Detail: err.Error()}
		if rec != nil {
			resp.AuditID = rec.AuditID
		}
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) auditStatus(c echo.Context) error {
	id := c.Param("audit_id")
	rec, err := s.runner.GetAudit(id)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Detail: "Audit not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) listChecks(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"checks": s.checks()})
}

// handleError renders errors escaping handlers as ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	detail := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		detail = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		s.log.Errorf("request %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Detail: detail})
	}
	if err != nil {
		s.log.Errorf("writing error response: %v", err)
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := s.log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	})
}
