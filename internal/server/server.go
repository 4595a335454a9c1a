// Package server exposes the gateway's HTTP surface: tool invocation,
// session/thread/agent management, workflows, and observability.
package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/oraclegate/internal/admission"
	"github.com/user/oraclegate/internal/bridge"
	"github.com/user/oraclegate/internal/config"
	"github.com/user/oraclegate/internal/types"
	"github.com/user/oraclegate/internal/workflow"
)

// Server wires the admission layer, execution bridge, stores, and workflow
// scheduler behind one router.
type Server struct {
	cfg       *config.Config
	admitter  *admission.Admitter
	runner    workflow.ToolRunner
	sessions  types.SessionStore
	threads   types.ThreadStore
	agents    types.AgentStore
	telemetry types.TelemetryStore
	workflows *workflow.Service
	metrics   *Metrics
	started   time.Time
}

func New(cfg *config.Config, admitter *admission.Admitter, runner workflow.ToolRunner,
	sessions types.SessionStore, threads types.ThreadStore, agents types.AgentStore,
	telemetry types.TelemetryStore, workflows *workflow.Service) *Server {
	return &Server{
		cfg:       cfg,
		admitter:  admitter,
		runner:    runner,
		sessions:  sessions,
		threads:   threads,
		agents:    agents,
		telemetry: telemetry,
		workflows: workflows,
		metrics:   NewMetrics(),
		started:   time.Now(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID(), s.countRequests(), recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)

	r.GET("/tools", s.handleListTools)
	r.POST("/tools/:name", s.handleInvokeTool)

	r.POST("/sessions", s.handleCreateSession)
	r.GET("/sessions/:id", s.handleGetSession)
	r.POST("/sessions/:id/threads", s.handleCreateThread)
	r.GET("/threads/:id", s.handleGetThread)
	r.POST("/threads/:id/tags", s.handleTagThread)
	r.POST("/threads/:id/archive", s.handleArchiveThread)

	r.POST("/agents", s.handleRegisterAgent)
	r.GET("/agents", s.handleListAgents)
	r.GET("/agents/:id", s.handleGetAgent)
	r.POST("/agents/:id/execute", s.handleAgentExecute)

	r.POST("/workflows", s.handleCreateWorkflow)
	r.GET("/workflows/:id", s.handleGetWorkflow)
	r.POST("/workflows/:id/execute", s.handleExecuteWorkflow)
	r.POST("/workflows/:id/pause", s.handlePauseWorkflow)

	r.GET("/telemetry/analytics", s.handleAnalytics)

	return r
}

// toolCommand converts a configured tool to a bridge command.
func toolCommand(t config.Tool) bridge.Command {
	return bridge.Command{Path: t.Command, Args: t.Args, Env: t.Env}
}

// toolRouteClass maps a tool's configured route class to the admission
// budget it draws from.
func toolRouteClass(t config.Tool) admission.RouteClass {
	if t.RouteClass == string(admission.RouteOracle) {
		return admission.RouteOracle
	}
	return admission.RouteGeneral
}

func (s *Server) record(c *gin.Context, ev *types.TelemetryEvent) {
	if _, err := s.telemetry.Record(c.Request.Context(), ev); err != nil {
		slog.Warn("record telemetry failed", "event_type", ev.Type, "error", err)
	}
}
