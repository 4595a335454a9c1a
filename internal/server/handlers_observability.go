package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/oraclegate/internal/admission"
	"github.com/user/oraclegate/internal/types"
)

func (s *Server) handleHealth(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteHealth); !ok {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	respondOK(c, http.StatusOK, gin.H{
		"status":           "ok",
		"uptime_seconds":   int64(time.Since(s.started).Seconds()),
		"goroutines":       runtime.NumGoroutine(),
		"heap_alloc_bytes": mem.HeapAlloc,
		"tools":            len(s.cfg.Tools),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteHealth); !ok {
		return
	}

	ctx := c.Request.Context()
	gauges := map[string]int64{
		"telemetry_events": int64(s.telemetry.Len()),
	}
	if sessions, err := s.sessions.List(ctx); err == nil {
		var active int64
		for _, sess := range sessions {
			if sess.Status == types.SessionActive {
				active++
			}
		}
		gauges["active_sessions"] = active
	}
	for status, n := range s.workflows.StatusCounts() {
		gauges["workflows_"+string(status)] = int64(n)
	}

	c.String(http.StatusOK, s.metrics.RenderText(gauges))
}

func (s *Server) handleAnalytics(c *gin.Context) {
	if _, _, ok := s.admitted(c, admission.RouteGeneral); !ok {
		return
	}

	window := time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			s.respondErr(c, types.E(types.KindValidation, "invalid window %q", raw))
			return
		}
		window = parsed
	}
	respondOK(c, http.StatusOK, s.telemetry.Analytics(window))
}
