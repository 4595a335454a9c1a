// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAuthContextCan(t *testing.T) {
	service := &AuthContext{CallerID: "svc", Permissions: map[string]bool{"*": true}}
	if !service.Can("workflows:execute") {
		t.Error("wildcard caller should hold every permission")
	}

	user := &AuthContext{CallerID: "alice", Permissions: map[string]bool{"tools:invoke": true}}
	if !user.Can("tools:invoke") {
		t.Error("expected granted permission")
	}
	if user.Can("admin") {
		t.Error("expected missing permission to be denied")
	}

	var none *AuthContext
	if none.Can("tools:invoke") {
		t.Error("nil context should deny everything")
	}
}

func TestSessionCloneIsolation(t *testing.T) {
	sess := &Session{
		ID:        NewSessionID(),
		ThreadIDs: []ThreadID{NewThreadID()},
		Metadata:  map[string]string{"k": "v"},
	}
	clone := sess.Clone()
	clone.ThreadIDs[0] = "mutated"
	clone.Metadata["k"] = "mutated"

	if sess.ThreadIDs[0] == "mutated" {
		t.Error("clone shares thread slice with original")
	}
	if sess.Metadata["k"] == "mutated" {
		t.Error("clone shares metadata map with original")
	}
}

func TestThreadArchived(t *testing.T) {
	thread := &Thread{ID: NewThreadID()}
	if thread.Archived() {
		t.Error("new thread should not be archived")
	}
	thread.Metadata = map[string]string{ThreadMetaArchived: "true"}
	if !thread.Archived() {
		t.Error("expected archived thread")
	}
}

func TestAgentHasCapability(t *testing.T) {
	agent := &Agent{ID: "a", Capabilities: []string{"get_price", "feed_oracle"}}
	if !agent.HasCapability("get_price") {
		t.Error("expected declared capability")
	}
	if agent.HasCapability("teleport") {
		t.Error("unexpected capability")
	}
}

func TestWorkflowTaskLookup(t *testing.T) {
	task := &WorkflowTask{ID: NewTaskID(), Type: "price_lookup"}
	wf := &Workflow{ID: NewWorkflowID(), Tasks: []*WorkflowTask{task}}

	if got := wf.Task(task.ID); got != task {
		t.Error("expected task by id")
	}
	if wf.Task("missing") != nil {
		t.Error("expected nil for unknown task id")
	}
}

func TestTelemetryEventSerialization(t *testing.T) {
	event := TelemetryEvent{
		ID:      NewEventID(),
		At:      time.Now(),
		Type:    "tool_invoked",
		AgentID: "agent-1",
		Data:    map[string]any{"tool": "get_price"},
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}

	var decoded TelemetryEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != event.Type {
		t.Errorf("expected type %s, got %s", event.Type, decoded.Type)
	}
}
