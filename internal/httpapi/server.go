// Package httpapi provides the HTTP API for dwellwell.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Mep-xx/dwellwell-sub001/internal/engine"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// Server exposes the scheduling engine over HTTP.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	store  *store.Store
	log    *slog.Logger
	addr   string
}

// NewServer creates an HTTP server fronting the engine. The store is used
// directly for read-only list endpoints; all writes go through the engine.
func NewServer(eng *engine.Engine, st *store.Store, log *slog.Logger, addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			log.Info("http request",
				slog.String("method", c.Request().Method),
				slog.String("uri", c.Request().RequestURI),
				slog.Int("status", c.Response().Status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{echo: e, engine: eng, store: st, log: log, addr: addr}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/scopes/:type/:id/generate", s.handleGenerate)

	v1.GET("/tasks", s.handleListTasks)
	v1.GET("/tasks/:id", s.handleGetTask)
	v1.POST("/tasks/:id/complete", s.handleCompleteTask)
	v1.POST("/tasks/:id/skip", s.handleSkipTask)
	v1.POST("/tasks/:id/snooze", s.handleSnoozeTask)
	v1.POST("/tasks/:id/pause", s.handlePauseTask)
	v1.POST("/tasks/:id/resume", s.handleResumeTask)
	v1.POST("/tasks/:id/archive", s.handleArchiveTask)
	v1.POST("/tasks/:id/unarchive", s.handleUnarchiveTask)
	v1.POST("/tasks/:id/sync", s.handleSyncTask)

	v1.GET("/trackables/:id", s.handleGetTrackable)
	v1.POST("/trackables/:id/pause", s.handlePauseTrackable)
	v1.POST("/trackables/:id/resume", s.handleResumeTrackable)
	v1.POST("/trackables/:id/retire", s.handleRetireTrackable)
	v1.POST("/trackables/:id/revive", s.handleReviveTrackable)

	v1.GET("/templates", s.handleListTemplates)
	v1.GET("/rules", s.handleListRules)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info("starting http server", slog.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
