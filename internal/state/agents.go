// internal/state/agents.go
package state

import (
	"context"
	"sync"

	"github.com/user/oraclegate/internal/types"
)

// Agents maps agent identities to their declared capability sets. Stats are
// derived on demand from telemetry and session data rather than stored.
type Agents struct {
	mu        sync.RWMutex
	byID      map[types.AgentID]*types.Agent
	telemetry types.TelemetryStore
	sessions  types.SessionStore
}

func NewAgents(telemetry types.TelemetryStore, sessions types.SessionStore) *Agents {
	return &Agents{
		byID:      make(map[types.AgentID]*types.Agent),
		telemetry: telemetry,
		sessions:  sessions,
	}
}

// Register adds or replaces an agent. Agents may register at startup or
// dynamically.
func (a *Agents) Register(_ context.Context, agent *types.Agent) error {
	if agent.ID == "" {
		return types.E(types.KindValidation, "agent id is required")
	}
	if len(agent.Capabilities) == 0 {
		return types.E(types.KindValidation, "agent %s declares no capabilities", agent.ID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID[agent.ID] = agent
	return nil
}

func (a *Agents) Get(_ context.Context, id types.AgentID) (*types.Agent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	agent, ok := a.byID[id]
	if !ok {
		return nil, types.E(types.KindNotFound, "agent %s not found", id)
	}
	return agent, nil
}

func (a *Agents) List(_ context.Context) ([]*types.Agent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*types.Agent, 0, len(a.byID))
	for _, agent := range a.byID {
		out = append(out, agent)
	}
	return out, nil
}

// Stats aggregates the agent's telemetry footprint and session count.
func (a *Agents) Stats(ctx context.Context, id types.AgentID) (*types.AgentStats, error) {
	if _, err := a.Get(ctx, id); err != nil {
		return nil, err
	}

	stats := &types.AgentStats{AgentID: id}
	for _, ev := range a.telemetry.ByAgent(id) {
		stats.EventCount++
		if ev.Type == "error" {
			stats.ErrorCount++
		}
		if ev.At.After(stats.LastActivity) {
			stats.LastActivity = ev.At
		}
	}

	sessions, err := a.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.OwnerAgentID == id {
			stats.SessionCount++
		}
	}
	return stats, nil
}
