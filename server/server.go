// Package server exposes the consultation pipeline over HTTP: a JSON
// request/response API, an SSE variant that streams pipeline phases,
// and the operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/lexisense/ai/metrics"
	"github.com/hrygo/lexisense/ai/orchestrator"
	"github.com/hrygo/lexisense/ai/session"
	"github.com/hrygo/lexisense/internal/profile"
)

// Server hosts the HTTP API.
type Server struct {
	echo         *echo.Echo
	orchestrator *orchestrator.Orchestrator
	sessions     *session.Manager
	exporter     *metrics.PrometheusExporter // nil disables /metrics
	profile      *profile.Profile
	logger       *slog.Logger
}

// NewServer wires the HTTP surface over an assembled pipeline.
func NewServer(p *profile.Profile, orch *orchestrator.Orchestrator, sessions *session.Manager, exporter *metrics.PrometheusExporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	s := &Server{
		echo:         e,
		orchestrator: orch,
		sessions:     sessions,
		exporter:     exporter,
		profile:      p,
		logger:       logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.health)
	if s.exporter != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	}

	api := s.echo.Group("/api/v1")
	api.POST("/sessions", s.createSession)
	api.DELETE("/sessions/:id", s.terminateSession)
	api.POST("/sessions/:id/messages", s.postMessage)
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	s.logger.Info("server: listening", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server start: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.profile.Version,
	})
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// createSession mints a session ID. State materializes lazily on the
// first message.
func (s *Server) createSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, createSessionResponse{SessionID: shortuuid.New()})
}

func (s *Server) terminateSession(c echo.Context) error {
	s.sessions.Terminate(c.Request().Context(), c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) postMessage(c echo.Context) error {
	sessionID := c.Param("id")

	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	if wantsEventStream(c.Request()) {
		return s.streamMessage(c, sessionID, req.Message)
	}

	result, err := s.orchestrator.Process(c.Request().Context(), sessionID, req.Message, nil)
	if err != nil {
		s.logger.Error("server: process failed", "session_id", sessionID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "consultation failed")
	}
	return c.JSON(http.StatusOK, result)
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get(echo.HeaderAccept), "text/event-stream")
}

type phaseEvent struct {
	Phase  string `json:"phase"`
	Detail any    `json:"detail"`
}

// streamMessage runs the pipeline while relaying phase events as SSE,
// then closes with a final "result" or "error" event. Phase events are
// advisory; a slow or broken consumer must not stall the pipeline, so
// the callback drops events once the buffer is full.
func (s *Server) streamMessage(c echo.Context, sessionID, message string) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	events := make(chan phaseEvent, 64)
	callback := func(phase string, detail any) error {
		select {
		case events <- phaseEvent{Phase: phase, Detail: detail}:
		default:
		}
		return nil
	}

	type processResult struct {
		result *orchestrator.Result
		err    error
	}
	done := make(chan processResult, 1)
	go func() {
		result, err := s.orchestrator.Process(c.Request().Context(), sessionID, message, callback)
		done <- processResult{result: result, err: err}
	}()

	for {
		select {
		case ev := <-events:
			if err := writeSSE(resp, "phase", ev); err != nil {
				// Consumer gone; the pipeline finishes on its own.
				s.logger.Debug("server: SSE consumer dropped", "session_id", sessionID)
				<-done
				return nil
			}
		case out := <-done:
			// Flush any phases that raced with completion.
			for {
				select {
				case ev := <-events:
					_ = writeSSE(resp, "phase", ev)
					continue
				default:
				}
				break
			}
			if out.err != nil {
				s.logger.Error("server: process failed", "session_id", sessionID, "error", out.err)
				return writeSSE(resp, "error", map[string]string{"message": "consultation failed"})
			}
			return writeSSE(resp, "result", out.result)
		}
	}
}

func writeSSE(resp *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
