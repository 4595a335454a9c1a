// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type SessionID string
type ThreadID string
type AgentID string
type WorkflowID string
type TaskID string
type EventID string
type RequestID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.New().String())
}

func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}
