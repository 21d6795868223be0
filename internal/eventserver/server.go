// Package eventserver exposes the iteration driver's event stream (C7) over
// HTTP, the network-facing half of C15's process entry points. A client
// opens one query with a POST and reads the run's events back as
// Server-Sent Events, one JSON frame per event, terminated by the run's
// Done or error frame.
package eventserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dexterhq/dexter/internal/agent"
	"github.com/dexterhq/dexter/internal/observability"
	"github.com/dexterhq/dexter/pkg/models"
)

// Server wraps a Runtime with an HTTP router. The Runtime must already have
// every built-in and skill tool registered before Server starts handling
// requests.
type Server struct {
	runtime *agent.Runtime
	logger  *observability.Logger
	router  *gin.Engine
}

// New builds a Server around runtime. Pass a logger for request-level
// diagnostics; a nil logger disables them.
func New(runtime *agent.Runtime, logger *observability.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{runtime: runtime, logger: logger, router: router}
	router.GET("/healthz", s.handleHealth)
	router.POST("/v1/queries", s.handleQuery)
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tools": s.runtime.Tools().Len()})
}

type queryRequest struct {
	Query      string `json:"query"`
	SessionKey string `json:"session_key"`
}

type sseFrame struct {
	Type  string            `json:"type"`
	Event models.AgentEvent `json:"event,omitempty"`
	Error string            `json:"error,omitempty"`
}

// handleQuery drives one query through the runtime and streams its event
// channel back as SSE, closing the response once the run's error channel
// reports completion.
func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	ctx := c.Request.Context()
	events, errs := s.runtime.Process(ctx, req.Query, req.SessionKey)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			s.writeFrame(c, sseFrame{Type: "event", Event: event})
			return true
		case err, ok := <-errs:
			if !ok {
				return false
			}
			if err != nil {
				s.logError(ctx, err)
				s.writeFrame(c, sseFrame{Type: "error", Error: err.Error()})
			}
			return false
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) writeFrame(c *gin.Context, frame sseFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.SSEvent(frame.Type, json.RawMessage(payload))
}

func (s *Server) logError(ctx context.Context, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Error(ctx, "query run failed", "error", err)
}

// Run starts an http.Server bound to addr and blocks until it returns.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
