package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"opsboard/internal/amqp"
	"opsboard/internal/services"
)

// Scheduler runs the cron jobs: the daily habit digest and the stale-lead
// sweep. Both publish notification messages; delivery and suppression are
// the NotifyWorker's problem.
type Scheduler struct {
	cron      *cron.Cron
	boards    *services.BoardService
	habits    *services.HabitService
	publisher *amqp.Client
	staleDays int
}

func NewScheduler(boards *services.BoardService, habits *services.HabitService, publisher *amqp.Client, staleDays int) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		boards:    boards,
		habits:    habits,
		publisher: publisher,
		staleDays: staleDays,
	}
}

// Schedule registers both jobs on the given 6-field cron spec and starts
// the scheduler.
func (s *Scheduler) Schedule(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.RunDigest(ctx); err != nil {
			slog.ErrorContext(ctx, "Digest job failed", "error", err)
		}
		if err := s.RunStaleLeadSweep(ctx); err != nil {
			slog.ErrorContext(ctx, "Stale lead sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunDigest publishes one habit-streak digest message per tenant.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	tenants, err := s.habits.Tenants(ctx)
	if err != nil {
		return err
	}
	today := time.Now().UTC()
	for _, tenantID := range tenants {
		streaks, err := s.habits.TenantStreaks(ctx, tenantID, today)
		if err != nil {
			slog.ErrorContext(ctx, "Digest streaks failed", "tenant_id", tenantID, "error", err)
			continue
		}
		if len(streaks) == 0 {
			continue
		}

		detail := ""
		for _, hs := range streaks {
			detail += fmt.Sprintf("%s: current %d, best %d\n", hs.Habit.Name, hs.Streak.Current, hs.Streak.Max)
		}
		msg := amqp.NewNotificationMessage(tenantID, "scheduler", "habit:digest",
			today.Format("2006-01-02"), detail)
		if err := s.publisher.PublishNotification(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish digest", "tenant_id", tenantID, "error", err)
		}
	}
	return nil
}

// RunStaleLeadSweep publishes a reminder for every open lead untouched for
// longer than the configured number of days.
func (s *Scheduler) RunStaleLeadSweep(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.staleDays)
	leads, err := s.boards.StaleLeads(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, lead := range leads {
		msg := amqp.NewNotificationMessage(lead.TenantID, "scheduler", "lead:stale",
			lead.Title, fmt.Sprintf("no movement since %s", lead.CreatedAt.Format("2006-01-02")))
		if err := s.publisher.PublishNotification(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish stale lead reminder",
				"record_id", lead.ID, "error", err)
		}
	}
	if len(leads) > 0 {
		slog.InfoContext(ctx, "Stale lead sweep completed", "count", len(leads))
	}
	return nil
}
