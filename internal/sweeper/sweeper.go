// Package sweeper runs the gateway's periodic maintenance: session TTL
// expiry, thread archival, and telemetry retention.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/oraclegate/internal/config"
	"github.com/user/oraclegate/internal/types"
)

// Sweeper schedules the lifecycle sweeps on a fixed interval. Each sweep is
// idempotent and safe to run concurrently with reads.
type Sweeper struct {
	cfg       config.LifecycleConfig
	sessions  types.SessionStore
	threads   types.ThreadStore
	telemetry types.TelemetryStore
	cron      *cron.Cron
	now       func() time.Time
}

func New(cfg config.LifecycleConfig, sessions types.SessionStore, threads types.ThreadStore, telemetry types.TelemetryStore) *Sweeper {
	return &Sweeper{
		cfg:       cfg,
		sessions:  sessions,
		threads:   threads,
		telemetry: telemetry,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// SetClock overrides the sweeper's clock. Test hook, matching the stores.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start registers the sweeps and starts the cron ticker.
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.SweepInterval)

	if _, err := s.cron.AddFunc(spec, s.sweepOnce); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	slog.Info("maintenance sweeper started",
		"interval", s.cfg.SweepInterval,
		"session_ttl", s.cfg.SessionTTL,
		"thread_archive_age", s.cfg.ThreadArchiveAge,
		"telemetry_retention", s.cfg.TelemetryRetention,
	)
	return nil
}

// Stop stops the cron ticker and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// sweepOnce runs all three sweeps. Exported behavior is tested through
// SweepNow.
func (s *Sweeper) sweepOnce() {
	ctx := context.Background()
	expired := s.sessions.ExpireStale(ctx, s.cfg.SessionTTL)
	archived := s.threads.ArchiveStale(ctx, s.cfg.ThreadArchiveAge)
	evicted := s.telemetry.EvictBefore(s.now().Add(-s.cfg.TelemetryRetention))
	slog.Debug("sweep finished", "sessions_expired", expired, "threads_archived", archived, "events_evicted", evicted)
}

// SweepNow triggers one immediate sweep outside the cron schedule.
func (s *Sweeper) SweepNow() {
	s.sweepOnce()
}
