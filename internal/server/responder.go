package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/user/oraclegate/internal/types"
)

// Responder abstracts how a long-running handler reports back: a buffered
// JSON envelope, or incremental server-sent events when the caller asked for
// a stream. Exactly one of Complete or Fail terminates the response.
type Responder interface {
	// Progress reports an intermediate step. Buffered responders ignore it.
	Progress(data any)
	// Complete writes the final success payload.
	Complete(data any)
	// Fail writes the terminal error.
	Fail(err error)
}

// wantsStream reports whether the caller negotiated server-sent events.
func wantsStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

func newResponder(c *gin.Context) Responder {
	if wantsStream(c) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		return &sseResponder{c: c}
	}
	return &jsonResponder{c: c}
}

type jsonResponder struct {
	c *gin.Context
}

func (r *jsonResponder) Progress(any) {}

func (r *jsonResponder) Complete(data any) {
	respondOK(r.c, http.StatusOK, data)
}

func (r *jsonResponder) Fail(err error) {
	r.c.AbortWithStatusJSON(types.HTTPStatus(types.KindOf(err)), gin.H{
		"ok":    false,
		"error": types.PublicMessage(err),
	})
}

// sseResponder emits one event per frame. The event name doubles as the
// frame type: progress, complete, error.
type sseResponder struct {
	c *gin.Context
}

func (r *sseResponder) emit(event string, data any) {
	r.c.SSEvent(event, data)
	r.c.Writer.Flush()
}

func (r *sseResponder) Progress(data any) { r.emit("progress", data) }

func (r *sseResponder) Complete(data any) {
	r.emit("complete", data)
}

func (r *sseResponder) Fail(err error) {
	r.emit("error", gin.H{"error": types.PublicMessage(err)})
}
