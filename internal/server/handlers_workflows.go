package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/oraclegate/internal/admission"
	"github.com/user/oraclegate/internal/types"
	"github.com/user/oraclegate/internal/workflow"
)

// createWorkflowRequest accepts either a named template (workflow_type) or an
// explicit task list. Exactly one of the two must be present.
type createWorkflowRequest struct {
	Name         string              `json:"name"`
	AgentID      types.AgentID       `json:"agent_id"`
	WorkflowType string              `json:"workflow_type"`
	Parameters   map[string]any      `json:"parameters"`
	Tasks        []workflow.TaskSpec `json:"tasks"`
}

func (s *Server) handleCreateWorkflow(c *gin.Context) {
	_, body, ok := s.admitted(c, admission.RouteGeneral)
	if !ok {
		return
	}

	var req createWorkflowRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondErr(c, types.Wrap(types.KindValidation, err, "malformed workflow request"))
		return
	}

	specs := req.Tasks
	name := req.Name
	if req.WorkflowType != "" {
		if len(req.Tasks) > 0 {
			s.respondErr(c, types.E(types.KindValidation,
				"workflow_type and tasks are mutually exclusive"))
			return
		}
		expanded, err := workflow.Expand(req.WorkflowType, req.AgentID, req.Parameters)
		if err != nil {
			s.respondErr(c, err)
			return
		}
		specs = expanded
		if name == "" {
			name = req.WorkflowType
		}
	}

	wf, err := s.workflows.Create(c.Request.Context(), name, req.AgentID, specs)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	s.record(c, &types.TelemetryEvent{
		Type:    "workflow_created",
		AgentID: req.AgentID,
		Data:    map[string]any{"workflow_id": wf.ID, "task_count": len(wf.Tasks)},
	})
	respondOK(c, http.StatusCreated, wf)
}

func (s *Server) handleGetWorkflow(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	wf, err := s.workflows.Get(c.Request.Context(), types.WorkflowID(c.Param("id")))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, wf)
}

func (s *Server) handleExecuteWorkflow(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	resp := newResponder(c)
	id := types.WorkflowID(c.Param("id"))
	wf, err := s.workflows.Execute(c.Request.Context(), id, func(task *types.WorkflowTask) {
		resp.Progress(task)
	})
	if err != nil {
		resp.Fail(err)
		return
	}
	resp.Complete(wf)
}

func (s *Server) handlePauseWorkflow(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	ctx := c.Request.Context()
	id := types.WorkflowID(c.Param("id"))
	if err := s.workflows.Pause(ctx, id); err != nil {
		s.respondErr(c, err)
		return
	}
	wf, err := s.workflows.Get(ctx, id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, wf)
}
