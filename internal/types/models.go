// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// AuthScheme identifies how a caller authenticated.
type AuthScheme string

const (
	SchemeService AuthScheme = "service"
	SchemeUser    AuthScheme = "user"
	SchemeAPIKey  AuthScheme = "apikey"
)

// AuthContext is the per-request identity produced by admission. It is never
// persisted and is discarded when the request ends.
type AuthContext struct {
	CallerID    string
	OrgID       string
	Scheme      AuthScheme
	Permissions map[string]bool
}

// Can reports whether the caller holds the given permission. A caller with
// the "*" permission holds all of them.
func (a *AuthContext) Can(perm string) bool {
	if a == nil {
		return false
	}
	return a.Permissions["*"] || a.Permissions[perm]
}

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionInactive SessionStatus = "inactive"
	SessionExpired  SessionStatus = "expired"
)

type Session struct {
	ID             SessionID         `json:"id"`
	OwnerAgentID   AgentID           `json:"owner_agent_id"`
	ClientID       string            `json:"client_id,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	Status         SessionStatus     `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ThreadIDs      []ThreadID        `json:"thread_ids"`
}

// Clone returns a deep copy so store internals cannot be mutated by callers.
func (s *Session) Clone() *Session {
	out := *s
	out.ThreadIDs = append([]ThreadID(nil), s.ThreadIDs...)
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// ThreadMetaArchived is the metadata key that marks a thread archived.
// Archival is soft state so telemetry references stay resolvable.
const ThreadMetaArchived = "archived"

type Thread struct {
	ID           ThreadID          `json:"id"`
	SessionID    SessionID         `json:"session_id"`
	Title        string            `json:"title,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	MessageCount int               `json:"message_count"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Archived reports whether the thread has been soft-archived.
func (t *Thread) Archived() bool {
	return t.Metadata[ThreadMetaArchived] == "true"
}

func (t *Thread) Clone() *Thread {
	out := *t
	out.Tags = append([]string(nil), t.Tags...)
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

type Agent struct {
	ID           AgentID            `json:"id"`
	Name         string             `json:"name"`
	Capabilities []string           `json:"capabilities"`
	Pricing      map[string]float64 `json:"pricing,omitempty"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

// HasCapability reports whether the agent declares the given capability.
func (a *Agent) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// AgentStats aggregates telemetry and session data for one agent.
type AgentStats struct {
	AgentID      AgentID   `json:"agent_id"`
	EventCount   int       `json:"event_count"`
	ErrorCount   int       `json:"error_count"`
	SessionCount int       `json:"session_count"`
	LastActivity time.Time `json:"last_activity,omitzero"`
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskDelegated  TaskStatus = "delegated"
)

type WorkflowTask struct {
	ID           TaskID          `json:"id"`
	Type         string          `json:"type"`
	Description  string          `json:"description,omitempty"`
	AgentID      AgentID         `json:"agent_id,omitempty"`
	Dependencies []TaskID        `json:"dependencies,omitempty"`
	Params       map[string]any  `json:"params,omitempty"`
	Status       TaskStatus      `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	Priority     int             `json:"priority"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (t *WorkflowTask) Clone() *WorkflowTask {
	out := *t
	out.Dependencies = append([]TaskID(nil), t.Dependencies...)
	out.Result = append(json.RawMessage(nil), t.Result...)
	if t.Params != nil {
		out.Params = make(map[string]any, len(t.Params))
		for k, v := range t.Params {
			out.Params[k] = v
		}
	}
	return &out
}

type WorkflowStatus string

const (
	WorkflowActive    WorkflowStatus = "active"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowPaused    WorkflowStatus = "paused"
)

// WorkflowMetadata carries the task counters surfaced to callers.
type WorkflowMetadata struct {
	TaskCount      int `json:"task_count"`
	CompletedTasks int `json:"completed_tasks"`
	FailedTasks    int `json:"failed_tasks"`
}

type Workflow struct {
	ID        WorkflowID       `json:"id"`
	Name      string           `json:"name"`
	Initiator AgentID          `json:"initiator"`
	Tasks     []*WorkflowTask  `json:"tasks"`
	Status    WorkflowStatus   `json:"status"`
	Metadata  WorkflowMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Clone returns a deep copy so store internals cannot be mutated, or read
// unsynchronized, by callers.
func (w *Workflow) Clone() *Workflow {
	out := *w
	out.Tasks = make([]*WorkflowTask, len(w.Tasks))
	for i, t := range w.Tasks {
		out.Tasks[i] = t.Clone()
	}
	return &out
}

// Task returns the task with the given id, or nil.
func (w *Workflow) Task(id TaskID) *WorkflowTask {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TelemetryEvent is an immutable record of something that happened. Session
// and thread references are lookup-only: deleting a session does not delete
// its telemetry history.
type TelemetryEvent struct {
	ID        EventID        `json:"id"`
	At        time.Time      `json:"at"`
	Type      string         `json:"type"`
	AgentID   AgentID        `json:"agent_id,omitempty"`
	SessionID SessionID      `json:"session_id,omitempty"`
	ThreadID  ThreadID       `json:"thread_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
