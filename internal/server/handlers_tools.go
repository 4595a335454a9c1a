package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/user/oraclegate/internal/admission"
	"github.com/user/oraclegate/internal/types"
)

// toolInfo is the public catalog entry for a configured tool.
type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RouteClass  string `json:"route_class"`
}

func (s *Server) handleListTools(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	out := make([]toolInfo, 0, len(s.cfg.Tools))
	for name, tool := range s.cfg.Tools {
		out = append(out, toolInfo{
			Name:        name,
			Description: tool.Description,
			RouteClass:  string(toolRouteClass(tool)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	respondOK(c, http.StatusOK, gin.H{"tools": out})
}

func (s *Server) handleInvokeTool(c *gin.Context) {
	name := c.Param("name")
	tool, found := s.cfg.Tools[name]
	class := admission.RouteGeneral
	if found {
		class = toolRouteClass(tool)
	}

	// Admission runs before the catalog lookup so unauthenticated callers
	// cannot distinguish configured tools from unknown ones.
	authCtx, body, ok := s.admitted(c, class)
	if !ok {
		return
	}
	if !found {
		s.respondErr(c, types.E(types.KindNotFound, "unknown tool %q", name))
		return
	}

	args := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			s.respondErr(c, types.Wrap(types.KindValidation, err, "request body is not a JSON object"))
			return
		}
	}

	resp := newResponder(c)
	resp.Progress(gin.H{"stage": "started", "tool": name})

	s.metrics.Inc("executions_total")
	result, err := s.runner.Execute(c.Request.Context(), toolCommand(tool), args)
	if err != nil {
		s.metrics.Inc("execution_failures_total")
		s.record(c, &types.TelemetryEvent{
			Type:    "error",
			AgentID: types.AgentID(authCtx.CallerID),
			Data:    map[string]any{"tool": name, "error": types.PublicMessage(err)},
		})
		resp.Fail(err)
		return
	}

	s.record(c, &types.TelemetryEvent{
		Type:    "tool_invoked",
		AgentID: types.AgentID(authCtx.CallerID),
		Data:    map[string]any{"tool": name},
	})
	resp.Complete(result)
}
