package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionPurger removes expired server-side sessions.
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPurger
	timeout  time.Duration
}

// NewScheduler creates a new job scheduler
func NewScheduler(sessions SessionPurger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		timeout:  time.Minute,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.purgeExpiredSessions); err != nil {
		return fmt.Errorf("schedule session purge %q: %w", schedule, err)
	}

	s.cron.Start()
	slog.Info("jobs: scheduler started", "session_purge", schedule)
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("jobs: scheduler stopped")
}

// purgeExpiredSessions removes expired session rows
func (s *Scheduler) purgeExpiredSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		slog.Error("jobs: failed to purge expired sessions", "error", err)
		return
	}
	if n > 0 {
		slog.Info("jobs: purged expired sessions", "count", n)
	}
}
