package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler prunes old decisions on a cron schedule.
type Scheduler struct {
	storage       *Storage
	retentionDays int
	schedule      string
	cron          *cron.Cron
	logger        *slog.Logger
}

// NewScheduler creates a retention scheduler. An empty schedule or a
// retention of zero days disables pruning.
func NewScheduler(storage *Storage, retentionDays int, schedule string) *Scheduler {
	return &Scheduler{
		storage:       storage,
		retentionDays: retentionDays,
		schedule:      schedule,
		cron:          cron.New(),
		logger:        slog.Default().With("component", "audit.retention"),
	}
}

// Start begins scheduled pruning and stops it when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule == "" || s.retentionDays <= 0 {
		s.logger.Info("audit retention disabled")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("audit: invalid prune schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.prune(ctx) }); err != nil {
		return fmt.Errorf("audit: schedule pruning: %w", err)
	}

	s.cron.Start()
	s.logger.Info("audit retention scheduler started",
		"schedule", s.schedule,
		"retention_days", s.retentionDays,
	)

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()

	return nil
}

func (s *Scheduler) prune(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	deleted, err := s.storage.PruneBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("audit pruning failed", "error", err)
		return
	}
	s.logger.Info("audit pruning complete", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
}
