package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/user/oraclegate/internal/admission"
	"github.com/user/oraclegate/internal/types"
	"github.com/user/oraclegate/internal/workflow"
)

func (s *Server) handleCreateSession(c *gin.Context) {
	_, body, ok := s.admitted(c, admission.RouteGeneral)
	if !ok {
		return
	}

	var req struct {
		AgentID  types.AgentID `json:"agent_id"`
		ClientID string        `json:"client_id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondErr(c, types.Wrap(types.KindValidation, err, "malformed session request"))
		return
	}
	if req.AgentID == "" {
		s.respondErr(c, types.E(types.KindValidation, "agent_id is required"))
		return
	}

	sess, err := s.sessions.Create(c.Request.Context(), req.AgentID, req.ClientID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	s.record(c, &types.TelemetryEvent{
		Type:      "session_started",
		AgentID:   req.AgentID,
		SessionID: sess.ID,
	})
	respondOK(c, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	id := types.SessionID(c.Param("id"))
	sess, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	threads, err := s.threads.ListBySession(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"session":     sess,
		"threads":     threads,
		"event_count": len(s.telemetry.BySession(id)),
	})
}

func (s *Server) handleCreateThread(c *gin.Context) {
	_, body, ok := s.admitted(c, admission.RouteGeneral)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.respondErr(c, types.Wrap(types.KindValidation, err, "malformed thread request"))
			return
		}
	}

	sessionID := types.SessionID(c.Param("id"))
	thread, err := s.threads.Create(c.Request.Context(), sessionID, req.Title)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	s.record(c, &types.TelemetryEvent{
		Type:      "thread_created",
		SessionID: sessionID,
		ThreadID:  thread.ID,
	})
	respondOK(c, http.StatusCreated, thread)
}

func (s *Server) handleGetThread(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	thread, err := s.threads.Get(c.Request.Context(), types.ThreadID(c.Param("id")))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, thread)
}

func (s *Server) handleTagThread(c *gin.Context) {
	_, body, ok := s.admitted(c, admission.RouteGeneral)
	if !ok {
		return
	}

	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondErr(c, types.Wrap(types.KindValidation, err, "malformed tag request"))
		return
	}
	if len(req.Tags) == 0 {
		s.respondErr(c, types.E(types.KindValidation, "tags are required"))
		return
	}

	id := types.ThreadID(c.Param("id"))
	if err := s.threads.Tag(c.Request.Context(), id, req.Tags...); err != nil {
		s.respondErr(c, err)
		return
	}
	thread, err := s.threads.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, thread)
}

func (s *Server) handleArchiveThread(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	id := types.ThreadID(c.Param("id"))
	if err := s.threads.Archive(c.Request.Context(), id); err != nil {
		s.respondErr(c, err)
		return
	}
	thread, err := s.threads.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, thread)
}

func (s *Server) handleRegisterAgent(c *gin.Context) {
	_, body, ok := s.admitted(c, admission.RouteGeneral)
	if !ok {
		return
	}

	var agent types.Agent
	if err := json.Unmarshal(body, &agent); err != nil {
		s.respondErr(c, types.Wrap(types.KindValidation, err, "malformed agent"))
		return
	}
	if err := s.agents.Register(c.Request.Context(), &agent); err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	agents, err := s.agents.List(c.Request.Context())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	respondOK(c, http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) handleGetAgent(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	id := types.AgentID(c.Param("id"))
	agent, err := s.agents.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	stats, err := s.agents.Stats(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"agent": agent, "stats": stats})
}

// handleAgentExecute runs one capability of an agent inside a session. The
// call is modeled as a single-task workflow so scheduling, telemetry, and
// delegation behave the same as for multi-step work.
func (s *Server) handleAgentExecute(c *gin.Context) {
	_, body, ok := s.admitted(c, admission.RouteGeneral)
	if !ok {
		return
	}

	var req struct {
		SessionID  types.SessionID `json:"session_id"`
		ThreadID   types.ThreadID  `json:"thread_id"`
		Capability string          `json:"capability"`
		Params     map[string]any  `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondErr(c, types.Wrap(types.KindValidation, err, "malformed execute request"))
		return
	}

	ctx := c.Request.Context()
	agentID := types.AgentID(c.Param("id"))
	agent, err := s.agents.Get(ctx, agentID)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	capability := req.Capability
	if capability == "" {
		capability = agent.Capabilities[0]
	}
	if !agent.HasCapability(capability) {
		s.respondErr(c, types.E(types.KindValidation,
			"agent %s does not have capability %q", agentID, capability))
		return
	}

	if req.SessionID != "" {
		if err := s.sessions.Touch(ctx, req.SessionID); err != nil {
			s.respondErr(c, err)
			return
		}
	}
	if req.ThreadID != "" {
		if err := s.threads.RecordMessage(ctx, req.ThreadID); err != nil {
			s.respondErr(c, err)
			return
		}
	}

	wf, err := s.workflows.Create(ctx, "agent_execute:"+capability, agentID, []workflow.TaskSpec{{
		Type:    capability,
		AgentID: agentID,
		Params:  req.Params,
	}})
	if err != nil {
		s.respondErr(c, err)
		return
	}

	resp := newResponder(c)
	done, err := s.workflows.Execute(ctx, wf.ID, func(task *types.WorkflowTask) {
		resp.Progress(task)
	})
	if err != nil {
		resp.Fail(err)
		return
	}

	task := done.Tasks[0]
	if task.Status == types.TaskFailed {
		resp.Fail(types.E(types.KindExecutionFailed, "%s", task.Error))
		return
	}
	resp.Complete(gin.H{
		"workflow_id": done.ID,
		"status":      task.Status,
		"result":      task.Result,
	})
}
