// internal/state/sessions.go
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/oraclegate/internal/types"
)

// Sessions is an in-memory session store with TTL-based expiry.
type Sessions struct {
	mu   sync.RWMutex
	byID map[types.SessionID]*types.Session
	now  func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{
		byID: make(map[types.SessionID]*types.Session),
		now:  time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (s *Sessions) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Sessions) Create(_ context.Context, agentID types.AgentID, clientID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &types.Session{
		ID:             types.NewSessionID(),
		OwnerAgentID:   agentID,
		ClientID:       clientID,
		StartedAt:      now,
		LastActivityAt: now,
		Status:         types.SessionActive,
		ThreadIDs:      []types.ThreadID{},
	}
	s.byID[sess.ID] = sess
	return sess.Clone(), nil
}

func (s *Sessions) Get(_ context.Context, id types.SessionID) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, types.E(types.KindNotFound, "session %s not found", id)
	}
	return sess.Clone(), nil
}

// Touch updates the session's last-activity time. Expired sessions never
// transition back to active.
func (s *Sessions) Touch(_ context.Context, id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return types.E(types.KindNotFound, "session %s not found", id)
	}
	if sess.Status == types.SessionExpired {
		return types.E(types.KindValidation, "session %s is expired", id)
	}
	sess.LastActivityAt = s.now()
	sess.Status = types.SessionActive
	return nil
}

func (s *Sessions) AttachThread(_ context.Context, id types.SessionID, threadID types.ThreadID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return types.E(types.KindNotFound, "session %s not found", id)
	}
	sess.ThreadIDs = append(sess.ThreadIDs, threadID)
	sess.LastActivityAt = s.now()
	return nil
}

func (s *Sessions) List(_ context.Context) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Session, 0, len(s.byID))
	for _, sess := range s.byID {
		out = append(out, sess.Clone())
	}
	return out, nil
}

// ExpireStale marks active sessions idle beyond ttl as expired and returns
// how many transitioned. The sweep is idempotent and safe alongside reads.
func (s *Sessions) ExpireStale(_ context.Context, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	expired := 0
	for _, sess := range s.byID {
		if sess.Status != types.SessionExpired && sess.LastActivityAt.Before(cutoff) {
			sess.Status = types.SessionExpired
			expired++
		}
	}
	if expired > 0 {
		slog.Info("expired stale sessions", "count", expired, "ttl", ttl)
	}
	return expired
}

// ActiveCount reports sessions not yet expired, for metrics.
func (s *Sessions) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sess := range s.byID {
		if sess.Status == types.SessionActive {
			n++
		}
	}
	return n
}
