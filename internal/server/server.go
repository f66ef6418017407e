// Package server exposes the chat pipeline over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flowchat/common/version"
	"flowchat/internal/pipeline"
	"flowchat/internal/store"
)

// Prober checks that the remote NiFi instance answers. *nifi.Client
// satisfies it through About.
type Prober interface {
	About(ctx context.Context) (string, error)
}

// AuditReader serves the recorded operation trail. *store.Store satisfies
// it; nil disables the audit endpoint.
type AuditReader interface {
	RecentAudit(ctx context.Context, limit int) ([]*store.AuditEntry, error)
}

// Server is the HTTP front end for the ask pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	prober   Prober
	audit    AuditReader
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the reply envelope of POST /api/chat.
type ChatResponse struct {
	Response  string `json:"response"`
	Intent    string `json:"intent"`
	SessionID string `json:"session_id"`
	TraceID   string `json:"trace_id"`
}

// ErrorResponse is the envelope for request-level failures.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// AuditRecord is one row of the GET /api/audit response.
type AuditRecord struct {
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target,omitempty"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
}

// New creates a Server around the assembled pipeline. audit may be nil.
func New(p *pipeline.Pipeline, prober Prober, audit AuditReader) *Server {
	return &Server{pipeline: p, prober: prober, audit: audit}
}

// SetupRoutes configures and returns the HTTP router.
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	router.GET("/healthz", s.handleHealth)
	router.GET("/version", s.handleVersion)
	router.POST("/api/chat", s.handleChat)
	router.GET("/api/audit", s.handleAudit)

	return router
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "query is required",
			Status: http.StatusBadRequest,
		})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply := s.pipeline.Ask(c.Request.Context(), req.Query, req.SessionID)
	c.JSON(http.StatusOK, ChatResponse{
		Response:  reply.Text,
		Intent:    string(reply.Kind),
		SessionID: req.SessionID,
		TraceID:   reply.TraceID,
	})
}

// handleHealth reports liveness plus a best-effort reachability check of the
// NiFi instance. The service stays healthy when NiFi is down; the flag just
// tells the operator which half is broken.
func (s *Server) handleHealth(c *gin.Context) {
	nifiStatus := "unknown"
	var nifiVersion string
	if s.prober != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		v, err := s.prober.About(ctx)
		if err != nil {
			nifiStatus = "unreachable"
		} else {
			nifiStatus = "ok"
			nifiVersion = v
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"nifi":         nifiStatus,
		"nifi_version": nifiVersion,
	})
}

// handleAudit returns the newest audit entries, most recent first.
func (s *Server) handleAudit(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:  "auditing is disabled",
			Status: http.StatusNotFound,
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "limit must be a positive integer",
			Status: http.StatusBadRequest,
		})
		return
	}

	entries, err := s.audit.RecentAudit(c.Request.Context(), limit)
	if err != nil {
		slog.Error("audit query failed", "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:  "audit query failed",
			Status: http.StatusInternalServerError,
		})
		return
	}

	records := make([]AuditRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, AuditRecord{
			Timestamp: e.Timestamp,
			TraceID:   e.TraceID,
			SessionID: e.SessionID,
			Kind:      e.Kind,
			Target:    e.Target.String,
			Result:    e.Result,
			Error:     e.ErrorMessage.String,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": records})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": version.Info()})
}
