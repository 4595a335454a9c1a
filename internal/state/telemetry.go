// internal/state/telemetry.go
package state

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/user/oraclegate/internal/types"
)

// recentErrorLimit caps how many error events analytics returns.
const recentErrorLimit = 20

// Telemetry is an append-only in-memory event log with type, agent, and
// session indices. Events are never mutated after creation; an age-based
// eviction sweep bounds memory.
type Telemetry struct {
	mu       sync.RWMutex
	events   []*types.TelemetryEvent
	byType   map[string][]int
	byAgent  map[types.AgentID][]int
	bySess   map[types.SessionID][]int
	handlers map[string][]types.TelemetryHandler
	now      func() time.Time
}

func NewTelemetry() *Telemetry {
	return &Telemetry{
		byType:   make(map[string][]int),
		byAgent:  make(map[types.AgentID][]int),
		bySess:   make(map[types.SessionID][]int),
		handlers: make(map[string][]types.TelemetryHandler),
		now:      time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (t *Telemetry) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Record appends the event, assigning its id and timestamp, then invokes
// registered handlers for the event type synchronously. Handler panics are
// recovered and logged, never propagated to the caller.
func (t *Telemetry) Record(_ context.Context, ev *types.TelemetryEvent) (types.EventID, error) {
	if ev.Type == "" {
		return "", types.E(types.KindValidation, "event type is required")
	}

	t.mu.Lock()
	ev.ID = types.NewEventID()
	ev.At = t.now()

	idx := len(t.events)
	t.events = append(t.events, ev)
	t.byType[ev.Type] = append(t.byType[ev.Type], idx)
	if ev.AgentID != "" {
		t.byAgent[ev.AgentID] = append(t.byAgent[ev.AgentID], idx)
	}
	if ev.SessionID != "" {
		t.bySess[ev.SessionID] = append(t.bySess[ev.SessionID], idx)
	}
	handlers := append([]types.TelemetryHandler(nil), t.handlers[ev.Type]...)
	t.mu.Unlock()

	for _, h := range handlers {
		invokeHandler(h, ev)
	}
	return ev.ID, nil
}

func invokeHandler(h types.TelemetryHandler, ev *types.TelemetryEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("telemetry handler panicked", "event_type", ev.Type, "panic", r)
		}
	}()
	h(ev)
}

// On registers a handler for the given event type.
func (t *Telemetry) On(eventType string, h types.TelemetryHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[eventType] = append(t.handlers[eventType], h)
}

func (t *Telemetry) ByType(eventType string) []*types.TelemetryEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collect(t.byType[eventType])
}

func (t *Telemetry) ByAgent(id types.AgentID) []*types.TelemetryEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collect(t.byAgent[id])
}

func (t *Telemetry) BySession(id types.SessionID) []*types.TelemetryEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collect(t.bySess[id])
}

func (t *Telemetry) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// collect resolves index entries to events; caller holds at least a read lock.
func (t *Telemetry) collect(idxs []int) []*types.TelemetryEvent {
	out := make([]*types.TelemetryEvent, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, t.events[i])
	}
	return out
}

// Analytics aggregates events recorded within the trailing window.
func (t *Telemetry) Analytics(window time.Duration) *types.TelemetryAnalytics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-window)
	out := &types.TelemetryAnalytics{
		Window:  window,
		ByType:  make(map[string]int),
		ByAgent: make(map[types.AgentID]int),
	}

	var errs []*types.TelemetryEvent
	for _, ev := range t.events {
		if ev.At.Before(cutoff) {
			continue
		}
		out.Total++
		out.ByType[ev.Type]++
		if ev.AgentID != "" {
			out.ByAgent[ev.AgentID]++
		}
		if ev.Type == "error" {
			errs = append(errs, ev)
		}
	}
	if len(errs) > recentErrorLimit {
		errs = errs[len(errs)-recentErrorLimit:]
	}
	out.RecentErrors = errs

	out.TopAgents = make([]types.AgentEventCount, 0, len(out.ByAgent))
	for id, n := range out.ByAgent {
		out.TopAgents = append(out.TopAgents, types.AgentEventCount{AgentID: id, Count: n})
	}
	sort.Slice(out.TopAgents, func(i, j int) bool {
		if out.TopAgents[i].Count != out.TopAgents[j].Count {
			return out.TopAgents[i].Count > out.TopAgents[j].Count
		}
		return out.TopAgents[i].AgentID < out.TopAgents[j].AgentID
	})
	return out
}

// EvictBefore discards events older than cutoff and rebuilds the indices.
// Returns the number of evicted events.
func (t *Telemetry) EvictBefore(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.events[:0:0]
	for _, ev := range t.events {
		if !ev.At.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	evicted := len(t.events) - len(kept)
	if evicted == 0 {
		return 0
	}

	t.events = kept
	t.byType = make(map[string][]int, len(t.byType))
	t.byAgent = make(map[types.AgentID][]int, len(t.byAgent))
	t.bySess = make(map[types.SessionID][]int, len(t.bySess))
	for i, ev := range t.events {
		t.byType[ev.Type] = append(t.byType[ev.Type], i)
		if ev.AgentID != "" {
			t.byAgent[ev.AgentID] = append(t.byAgent[ev.AgentID], i)
		}
		if ev.SessionID != "" {
			t.bySess[ev.SessionID] = append(t.bySess[ev.SessionID], i)
		}
	}
	slog.Info("evicted telemetry events", "count", evicted, "cutoff", cutoff)
	return evicted
}
