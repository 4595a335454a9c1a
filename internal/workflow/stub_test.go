package workflow

import (
	"context"
	"encoding/json"

	"github.com/user/oraclegate/internal/bridge"
)

// stubRunner stands in for the execution bridge.
type stubRunner struct {
	result   json.RawMessage
	err      error
	calls    int
	lastArgs map[string]any
}

func (s *stubRunner) Execute(_ context.Context, _ bridge.Command, args map[string]any) (json.RawMessage, error) {
	s.calls++
	s.lastArgs = args
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func stubCommand() bridge.Command {
	return bridge.Command{Path: "/bin/true"}
}
