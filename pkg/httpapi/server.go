// Package httpapi implements the HTTP Adapter: it parses requests shaped
// like several popular chat APIs, drives the Plan Evaluator for each one,
// and renders the response (or a live event stream) back in the matching
// wire shape, optionally attaching the execution record.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chorusdev/chorus/pkg/config"
	"github.com/chorusdev/chorus/pkg/model"
	"github.com/chorusdev/chorus/pkg/plan"
	"github.com/chorusdev/chorus/pkg/workflow"
)

// Server wires the workflow engine, the root plan, and the model map
// into a gin.Engine serving the gateway's endpoints. It holds no
// per-request mutable state; every field is read-only once constructed.
type Server struct {
	engine *workflow.Engine
	plan   *plan.Plan
	models *model.Map
	cfg    *config.Config

	startedAt time.Time
}

// New builds a Server. cfg, models and p are shared read-only across every
// request the returned Server handles.
func New(cfg *config.Config, models *model.Map, p *plan.Plan, engine *workflow.Engine) *Server {
	return &Server{
		engine:    engine,
		plan:      p,
		models:    models,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// Router builds the gin.Engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/", s.handleHealthDocument)
	r.GET("/healthz", s.handleHealthz)

	r.POST("/api/generate", s.handleGenerate)
	r.POST("/v1/generate", s.handleGenerate)

	r.POST("/api/chat", s.handleChat)
	r.POST("/v1/chat", s.handleChat)

	r.POST("/v1/chat/completions", s.handleChatCompletions)
	r.POST("/v1/completions", s.handleTextCompletions)
	r.POST("/v1/responses", s.handleResponses)

	r.GET("/api/tags", s.handleListModels)
	r.GET("/v1/tags", s.handleListModels)
	r.GET("/v1/models", s.handleListModels)

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealthDocument(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "chorus",
		"version": "0.1.0",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListModels(c *gin.Context) {
	now := time.Now().Format(time.RFC3339)
	names := s.models.Names()
	entries := make([]modelEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, modelEntry{Name: name, Model: name, ModifiedAt: now})
	}
	c.JSON(http.StatusOK, gin.H{"models": entries})
}
