// Package core implements the aggregation and state-transition logic of the
// agency dashboard: date bucketing, kanban boards, habit streaks, monthly
// summaries and conditional briefing forms. Everything here is a pure
// transformation over caller-supplied snapshots; persistence and delivery
// live in the surrounding packages.
package core

import (
	"time"
)

// backlogDate is the far-future placeholder for records without a real due
// date. It sorts after every real date and is never overdue.
var backlogDate = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// Due is a tagged optional due date. The zero value means "backlog, no date
// assigned"; the 2099 sentinel exists only at the parse/serialize boundary.
type Due struct {
	t   time.Time
	set bool
}

// DueOn returns a Due set to the given time.
func DueOn(t time.Time) Due {
	return Due{t: t, set: true}
}

// NoDue returns the unset backlog value.
func NoDue() Due {
	return Due{}
}

// IsSet reports whether a real due date was assigned.
func (d Due) IsSet() bool {
	return d.set
}

// Time returns the due date, or the backlog sentinel when unset. The
// sentinel keeps undated records sorting last.
func (d Due) Time() time.Time {
	if !d.set {
		return backlogDate
	}
	return d.t
}

// MonthKey returns the canonical YYYY-MM partition key for the due date.
// It depends only on the date itself, never on the wall clock.
func (d Due) MonthKey() string {
	return MonthKey(d.Time())
}

// MonthKey derives the YYYY-MM partition key from a timestamp.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// whenLayouts are the accepted input formats, most specific first.
var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseWhen parses a timestamp string into a Due value. Empty input means
// backlog. Unparseable input also falls back to backlog so a bad date never
// fails a request, but ErrMalformedTimestamp is returned alongside for
// callers that want to surface it.
func ParseWhen(s string) (Due, error) {
	if s == "" {
		return NoDue(), nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DueOn(t), nil
		}
	}
	return NoDue(), ErrMalformedTimestamp
}

// DueStatus reports overdue state relative to a captured "now".
type DueStatus struct {
	Overdue     bool
	DaysOverdue int
}

// Dueness computes the overdue status of a due date against now. Days are
// whole calendar days, floored, never negative. Backlog is never overdue.
func Dueness(d Due, now time.Time) DueStatus {
	if !d.set {
		return DueStatus{}
	}
	due := dateOnly(d.t)
	today := dateOnly(now)
	if !due.Before(today) {
		return DueStatus{}
	}
	days := int(today.Sub(due).Hours() / 24)
	return DueStatus{Overdue: true, DaysOverdue: days}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
