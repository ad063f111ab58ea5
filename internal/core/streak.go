package core

import (
	"time"
)

const dayKeyLayout = "2006-01-02"

type (
	// Schedule is the set of weekdays on which a habit is expected.
	// Daily() is the distinguished full-week case.
	Schedule struct {
		days [7]bool
	}

	// Habit is a periodic practice tracked against its schedule.
	Habit struct {
		ID       int64
		TenantID int64
		Name     string
		Schedule Schedule
	}

	// CompletionLog is the append-only set of days a habit was completed,
	// unique per day.
	CompletionLog struct {
		days     map[string]time.Time
		earliest time.Time
	}

	// StreakResult summarizes a habit's consecutive-completion runs.
	StreakResult struct {
		Current        int
		Max            int
		TotalCompleted int
	}
)

// Daily returns the every-day schedule.
func Daily() Schedule {
	var s Schedule
	for i := range s.days {
		s.days[i] = true
	}
	return s
}

// OnWeekdays returns a schedule expecting the given weekdays.
func OnWeekdays(days ...time.Weekday) Schedule {
	var s Schedule
	for _, d := range days {
		s.days[d] = true
	}
	return s
}

// Expects reports whether the habit is due on the given weekday.
func (s Schedule) Expects(d time.Weekday) bool {
	return s.days[d]
}

// Weekdays returns the expected weekdays in Sunday-first order.
func (s Schedule) Weekdays() []time.Weekday {
	var out []time.Weekday
	for i, on := range s.days {
		if on {
			out = append(out, time.Weekday(i))
		}
	}
	return out
}

// IsDaily reports whether every weekday is expected.
func (s Schedule) IsDaily() bool {
	for _, on := range s.days {
		if !on {
			return false
		}
	}
	return true
}

func (s Schedule) Validate() error {
	for _, on := range s.days {
		if on {
			return nil
		}
	}
	return ErrEmptySchedule
}

// NewCompletionLog builds a log from completion days. Duplicate days
// collapse silently here; Add is the operation that rejects them.
func NewCompletionLog(days ...time.Time) *CompletionLog {
	log := &CompletionLog{days: make(map[string]time.Time)}
	for _, d := range days {
		day := dateOnly(d)
		key := day.Format(dayKeyLayout)
		if _, ok := log.days[key]; ok {
			continue
		}
		log.days[key] = day
		if log.earliest.IsZero() || day.Before(log.earliest) {
			log.earliest = day
		}
	}
	return log
}

// Add records a completion for the given day. Completing the same day twice
// is rejected with ErrDuplicateCompletion.
func (l *CompletionLog) Add(day time.Time) error {
	d := dateOnly(day)
	key := d.Format(dayKeyLayout)
	if _, ok := l.days[key]; ok {
		return ErrDuplicateCompletion
	}
	l.days[key] = d
	if l.earliest.IsZero() || d.Before(l.earliest) {
		l.earliest = d
	}
	return nil
}

// Remove deletes the completion for the given day only, reporting whether an
// entry existed.
func (l *CompletionLog) Remove(day time.Time) bool {
	key := dateOnly(day).Format(dayKeyLayout)
	if _, ok := l.days[key]; !ok {
		return false
	}
	delete(l.days, key)
	l.rescanEarliest()
	return true
}

// Contains reports whether the habit was completed on the given day.
func (l *CompletionLog) Contains(day time.Time) bool {
	_, ok := l.days[dateOnly(day).Format(dayKeyLayout)]
	return ok
}

// Len returns the number of distinct completion days.
func (l *CompletionLog) Len() int {
	return len(l.days)
}

func (l *CompletionLog) rescanEarliest() {
	l.earliest = time.Time{}
	for _, d := range l.days {
		if l.earliest.IsZero() || d.Before(l.earliest) {
			l.earliest = d
		}
	}
}

// Streaks computes the current and maximum consecutive-completion streaks
// for a habit. A day only counts against a streak when the schedule expects
// it: skipped unexpected days never break a run.
//
// The current streak walks backward from today and stops at the first
// expected-but-missed day. If today is expected and not yet completed, the
// walk starts at yesterday instead, so an open day doesn't break a live
// streak before it has elapsed.
//
// The maximum streak is the longest such run anywhere in the log, found in a
// single forward walk from the earliest completion to today.
func Streaks(s Schedule, log *CompletionLog, today time.Time) StreakResult {
	res := StreakResult{TotalCompleted: log.Len()}
	if log.Len() == 0 {
		return res
	}

	today = dateOnly(today)
	start := today
	if s.Expects(today.Weekday()) && !log.Contains(today) {
		start = today.AddDate(0, 0, -1)
	}
	for d := start; !d.Before(log.earliest); d = d.AddDate(0, 0, -1) {
		if !s.Expects(d.Weekday()) {
			continue
		}
		if !log.Contains(d) {
			break
		}
		res.Current++
	}

	run := 0
	for d := log.earliest; !d.After(today); d = d.AddDate(0, 0, 1) {
		if !s.Expects(d.Weekday()) {
			continue
		}
		if log.Contains(d) {
			run++
			if run > res.Max {
				res.Max = run
			}
			continue
		}
		if d.Equal(today) {
			// Today is still open; it doesn't end a run yet.
			continue
		}
		run = 0
	}

	if res.Current > res.Max {
		res.Max = res.Current
	}
	return res
}
