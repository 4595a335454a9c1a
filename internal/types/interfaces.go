// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

type SessionStore interface {
	Create(ctx context.Context, agentID AgentID, clientID string) (*Session, error)
	Get(ctx context.Context, id SessionID) (*Session, error)
	Touch(ctx context.Context, id SessionID) error
	AttachThread(ctx context.Context, id SessionID, threadID ThreadID) error
	List(ctx context.Context) ([]*Session, error)
	ExpireStale(ctx context.Context, ttl time.Duration) int
}

type ThreadStore interface {
	Create(ctx context.Context, sessionID SessionID, title string) (*Thread, error)
	Get(ctx context.Context, id ThreadID) (*Thread, error)
	Tag(ctx context.Context, id ThreadID, tags ...string) error
	RecordMessage(ctx context.Context, id ThreadID) error
	Archive(ctx context.Context, id ThreadID) error
	ArchiveStale(ctx context.Context, maxAge time.Duration) int
	ListBySession(ctx context.Context, sessionID SessionID) ([]*Thread, error)
}

type AgentStore interface {
	Register(ctx context.Context, agent *Agent) error
	Get(ctx context.Context, id AgentID) (*Agent, error)
	List(ctx context.Context) ([]*Agent, error)
	Stats(ctx context.Context, id AgentID) (*AgentStats, error)
}

// TelemetryHandler is invoked synchronously for each recorded event of a
// subscribed type. Panics are recovered and logged, never propagated.
type TelemetryHandler func(ev *TelemetryEvent)

type TelemetryStore interface {
	Record(ctx context.Context, ev *TelemetryEvent) (EventID, error)
	On(eventType string, h TelemetryHandler)
	ByType(eventType string) []*TelemetryEvent
	ByAgent(id AgentID) []*TelemetryEvent
	BySession(id SessionID) []*TelemetryEvent
	Analytics(window time.Duration) *TelemetryAnalytics
	EvictBefore(cutoff time.Time) int
	Len() int
}

// AgentEventCount pairs an agent with its event count inside a window.
type AgentEventCount struct {
	AgentID AgentID `json:"agent_id"`
	Count   int     `json:"count"`
}

// TelemetryAnalytics is a windowed aggregation over the event log.
type TelemetryAnalytics struct {
	Window       time.Duration     `json:"window_seconds"`
	Total        int               `json:"total"`
	ByType       map[string]int    `json:"by_type"`
	ByAgent      map[AgentID]int   `json:"by_agent"`
	TopAgents    []AgentEventCount `json:"top_agents"`
	RecentErrors []*TelemetryEvent `json:"recent_errors"`
}
