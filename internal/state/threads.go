// internal/state/threads.go
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/oraclegate/internal/types"
)

// Threads is an in-memory thread store. Thread creation requires an existing
// session (no orphans); archival is soft state recorded in metadata so
// telemetry references remain resolvable.
type Threads struct {
	mu        sync.RWMutex
	byID      map[types.ThreadID]*types.Thread
	bySession map[types.SessionID][]types.ThreadID
	sessions  types.SessionStore
	now       func() time.Time
}

func NewThreads(sessions types.SessionStore) *Threads {
	return &Threads{
		byID:      make(map[types.ThreadID]*types.Thread),
		bySession: make(map[types.SessionID][]types.ThreadID),
		sessions:  sessions,
		now:       time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (t *Threads) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Threads) Create(ctx context.Context, sessionID types.SessionID, title string) (*types.Thread, error) {
	if _, err := t.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	t.mu.Lock()
	now := t.now()
	th := &types.Thread{
		ID:        types.NewThreadID(),
		SessionID: sessionID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.byID[th.ID] = th
	t.bySession[sessionID] = append(t.bySession[sessionID], th.ID)
	t.mu.Unlock()

	if err := t.sessions.AttachThread(ctx, sessionID, th.ID); err != nil {
		return nil, err
	}
	return th.Clone(), nil
}

func (t *Threads) Get(_ context.Context, id types.ThreadID) (*types.Thread, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	th, ok := t.byID[id]
	if !ok {
		return nil, types.E(types.KindNotFound, "thread %s not found", id)
	}
	return th.Clone(), nil
}

// Tag adds tags to the thread, deduplicating against existing ones.
func (t *Threads) Tag(_ context.Context, id types.ThreadID, tags ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	th, ok := t.byID[id]
	if !ok {
		return types.E(types.KindNotFound, "thread %s not found", id)
	}
	have := make(map[string]bool, len(th.Tags))
	for _, tag := range th.Tags {
		have[tag] = true
	}
	for _, tag := range tags {
		if tag != "" && !have[tag] {
			th.Tags = append(th.Tags, tag)
			have[tag] = true
		}
	}
	th.UpdatedAt = t.now()
	return nil
}

func (t *Threads) RecordMessage(_ context.Context, id types.ThreadID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	th, ok := t.byID[id]
	if !ok {
		return types.E(types.KindNotFound, "thread %s not found", id)
	}
	th.MessageCount++
	th.UpdatedAt = t.now()
	return nil
}

// Archive soft-archives the thread via metadata.
func (t *Threads) Archive(_ context.Context, id types.ThreadID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	th, ok := t.byID[id]
	if !ok {
		return types.E(types.KindNotFound, "thread %s not found", id)
	}
	t.archiveLocked(th)
	return nil
}

// ArchiveStale archives threads not updated within maxAge and returns how
// many were newly archived.
func (t *Threads) ArchiveStale(_ context.Context, maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxAge)
	archived := 0
	for _, th := range t.byID {
		if !th.Archived() && th.UpdatedAt.Before(cutoff) {
			t.archiveLocked(th)
			archived++
		}
	}
	if archived > 0 {
		slog.Info("archived stale threads", "count", archived, "max_age", maxAge)
	}
	return archived
}

func (t *Threads) ListBySession(_ context.Context, sessionID types.SessionID) ([]*types.Thread, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := t.bySession[sessionID]
	out := make([]*types.Thread, 0, len(ids))
	for _, id := range ids {
		if th, ok := t.byID[id]; ok {
			out = append(out, th.Clone())
		}
	}
	return out, nil
}

// archiveLocked marks th archived; caller holds the write lock.
func (t *Threads) archiveLocked(th *types.Thread) {
	if th.Metadata == nil {
		th.Metadata = make(map[string]string, 2)
	}
	th.Metadata[types.ThreadMetaArchived] = "true"
	th.Metadata["archived_at"] = t.now().UTC().Format(time.RFC3339)
	th.UpdatedAt = t.now()
}
