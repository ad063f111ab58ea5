package services

import (
	"context"
	"fmt"
	"time"

	"opsboard/internal/core"
	"opsboard/internal/storage"
)

// HabitService tracks scheduled habits and their streaks.
type HabitService struct {
	storage *storage.SQLiteRepository
}

func NewHabitService(storage *storage.SQLiteRepository) *HabitService {
	return &HabitService{storage: storage}
}

func (s *HabitService) CreateHabit(ctx context.Context, h core.Habit) (int64, error) {
	if h.Name == "" {
		return 0, core.ErrEmptyTitle
	}
	if err := h.Schedule.Validate(); err != nil {
		return 0, err
	}
	id, err := s.storage.CreateHabit(ctx, h)
	if err != nil {
		return 0, fmt.Errorf("save habit: %w", err)
	}
	return id, nil
}

func (s *HabitService) ListHabits(ctx context.Context, tenantID int64) ([]core.Habit, error) {
	habits, err := s.storage.ListHabits(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// Complete marks a tenant's habit done on the given day. Completing the
// same day twice returns core.ErrDuplicateCompletion.
func (s *HabitService) Complete(ctx context.Context, tenantID, habitID int64, day time.Time) error {
	if _, err := s.storage.GetHabit(ctx, tenantID, habitID); err != nil {
		return fmt.Errorf("load habit: %w", err)
	}
	return s.storage.AddCompletion(ctx, habitID, day)
}

// Uncomplete removes a completion from a tenant's habit. It reports whether
// anything was removed.
func (s *HabitService) Uncomplete(ctx context.Context, tenantID, habitID int64, day time.Time) (bool, error) {
	if _, err := s.storage.GetHabit(ctx, tenantID, habitID); err != nil {
		return false, fmt.Errorf("load habit: %w", err)
	}
	return s.storage.RemoveCompletion(ctx, habitID, day)
}

// Streaks computes the current and max streaks for one of a tenant's habits
// as of today.
func (s *HabitService) Streaks(ctx context.Context, tenantID, habitID int64, today time.Time) (core.StreakResult, error) {
	habit, err := s.storage.GetHabit(ctx, tenantID, habitID)
	if err != nil {
		return core.StreakResult{}, fmt.Errorf("load habit: %w", err)
	}
	days, err := s.storage.ListCompletions(ctx, habitID)
	if err != nil {
		return core.StreakResult{}, fmt.Errorf("list completions: %w", err)
	}
	return core.Streaks(habit.Schedule, core.NewCompletionLog(days...), today), nil
}

// Tenants lists every tenant id known to storage, for per-tenant jobs.
func (s *HabitService) Tenants(ctx context.Context) ([]int64, error) {
	ids, err := s.storage.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return ids, nil
}

// HabitStreak pairs a habit with its streak result for digest reporting.
type HabitStreak struct {
	Habit  core.Habit
	Streak core.StreakResult
}

// TenantStreaks computes streaks for every habit of a tenant.
func (s *HabitService) TenantStreaks(ctx context.Context, tenantID int64, today time.Time) ([]HabitStreak, error) {
	habits, err := s.storage.ListHabits(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	out := make([]HabitStreak, 0, len(habits))
	for _, h := range habits {
		days, err := s.storage.ListCompletions(ctx, h.ID)
		if err != nil {
			return nil, fmt.Errorf("list completions for habit %d: %w", h.ID, err)
		}
		out = append(out, HabitStreak{
			Habit:  h,
			Streak: core.Streaks(h.Schedule, core.NewCompletionLog(days...), today),
		})
	}
	return out, nil
}
