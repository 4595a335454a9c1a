// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	if id == "" {
		t.Error("expected non-empty SessionID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestIDsAreUnique(t *testing.T) {
	seen := map[string]bool{
		string(NewSessionID()):  true,
		string(NewThreadID()):   true,
		string(NewWorkflowID()): true,
		string(NewTaskID()):     true,
		string(NewEventID()):    true,
		string(NewRequestID()):  true,
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 distinct ids, got %d", len(seen))
	}
}
