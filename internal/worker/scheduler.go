package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voluntree/engage-api/internal/service/archival"
	"github.com/voluntree/engage-api/internal/service/notification"
	"github.com/voluntree/engage-api/pkg/logger"
)

const jobTimeout = 10 * time.Minute

// Scheduler runs the three time-driven jobs: the archival sweep, the
// rating reminder pass, and notification expiry cleanup. The reminder
// pass matches on exact days since archival, so its schedule must be
// daily.
type Scheduler struct {
	cron     *cron.Cron
	archival *archival.Service
	notifier *notification.Service
	logger   *logger.Logger
}

func NewScheduler(archivalSvc *archival.Service, notifierSvc *notification.Service, l *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		archival: archivalSvc,
		notifier: notifierSvc,
		logger:   l,
	}
}

// Start registers the jobs and starts the cron engine. It returns an
// error when a cron expression does not parse; it never blocks.
func (s *Scheduler) Start(archivalSpec, reminderSpec, cleanupSpec string) error {
	if _, err := s.cron.AddFunc(archivalSpec, s.runArchivalSweep); err != nil {
		return fmt.Errorf("failed to register archival job: %w", err)
	}
	if _, err := s.cron.AddFunc(reminderSpec, s.runReminderPass); err != nil {
		return fmt.Errorf("failed to register reminder job: %w", err)
	}
	if _, err := s.cron.AddFunc(cleanupSpec, s.runCleanup); err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"archival", archivalSpec, "reminders", reminderSpec, "cleanup", cleanupSpec)
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runArchivalSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := s.archival.ArchiveCompletedEvents(ctx)
	if err != nil {
		s.logger.Error(err, "archival sweep failed")
		return
	}
	s.logger.Info("archival sweep done", "archived", result.Archived, "failed", result.Failed)
}

func (s *Scheduler) runReminderPass() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := s.archival.ScheduleRatingReminders(ctx)
	if err != nil {
		s.logger.Error(err, "reminder pass failed")
		return
	}
	s.logger.Info("reminder pass done", "reminded", result.Reminded, "skipped", result.Skipped)
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	expired, err := s.notifier.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error(err, "notification cleanup failed")
		return
	}
	s.logger.Info("notification cleanup done", "expired", expired)
}
