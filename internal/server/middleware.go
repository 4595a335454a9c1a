package server

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/user/oraclegate/internal/admission"
	"github.com/user/oraclegate/internal/types"
)

const (
	// RequestIDHeader carries the per-request correlation id, echoed back
	// to the caller and attached to log lines.
	RequestIDHeader = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxAuth      = "auth_context"

	// maxBodyBytes bounds request bodies before signature verification.
	maxBodyBytes = 1 << 20
)

// requestID assigns a correlation id to every request, honoring one the
// caller already set.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = string(types.NewRequestID())
		}
		c.Set(ctxRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.metrics.Inc("requests_total")
		c.Next()
	}
}

// recovery turns handler panics into the standard error envelope instead of
// a bare 500.
func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		slog.Error("handler panic", "path", c.FullPath(), "panic", recovered,
			"request_id", c.GetString(ctxRequestID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": "internal error",
		})
	})
}

// admitted runs the request through authentication and rate limiting for the
// given route class. It returns the raw body so handlers can decode it after
// the signature has been checked, and false if a rejection was already
// written to the client.
func (s *Server) admitted(c *gin.Context, class admission.RouteClass) (*types.AuthContext, []byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		s.respondErr(c, types.Wrap(types.KindValidation, err, "unreadable request body"))
		return nil, nil, false
	}

	authCtx, err := s.admitter.Admit(c.Request.Context(), c.Request, body, class)
	if err != nil {
		switch types.KindOf(err) {
		case types.KindUnauthorized:
			s.metrics.Inc("rejected_unauthorized_total")
		case types.KindRateLimited:
			s.metrics.Inc("rejected_rate_limited_total")
		}
		s.respondErr(c, err)
		return nil, nil, false
	}
	c.Set(ctxAuth, authCtx)
	c.Header("X-RateLimit-Remaining",
		strconv.Itoa(s.admitter.Limiter().Remaining(class, authCtx.CallerID)))
	return authCtx, body, true
}

// respondErr writes the buffered error envelope for err. Streaming handlers
// use their Responder instead once frames have been sent.
func (s *Server) respondErr(c *gin.Context, err error) {
	kind := types.KindOf(err)
	if kind == types.KindInternal {
		slog.Error("request failed", "path", c.FullPath(), "error", err,
			"request_id", c.GetString(ctxRequestID))
	}
	c.AbortWithStatusJSON(types.HTTPStatus(kind), gin.H{
		"ok":    false,
		"error": types.PublicMessage(err),
	})
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}
