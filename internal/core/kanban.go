package core

import (
	"sort"
	"time"
)

type (
	// ColumnView holds the records currently sitting in one board column,
	// ordered by due date ascending.
	ColumnView struct {
		ID      Status
		Records []Record
	}

	// BoardView is the result of partitioning a record set onto a board.
	// Unassigned collects records whose status is outside the board's
	// enumeration; they still belong to the caller, just not to a column.
	BoardView struct {
		Columns    []ColumnView
		Unassigned []Record
	}
)

// Columns partitions records onto the board's columns. When monthFilter is a
// YYYY-MM key, records bucketed to a different month are excluded entirely.
// Within a column, records order by due date ascending; undated records sort
// last via the backlog sentinel, ties break by id for determinism.
func Columns(b Board, records []Record, monthFilter string) BoardView {
	view := BoardView{Columns: make([]ColumnView, len(b.Columns))}
	byStatus := make(map[Status]int, len(b.Columns))
	for i, c := range b.Columns {
		view.Columns[i] = ColumnView{ID: c}
		byStatus[c] = i
	}

	for _, r := range records {
		if monthFilter != "" && r.Due.MonthKey() != monthFilter {
			continue
		}
		i, ok := byStatus[r.Status]
		if !ok {
			view.Unassigned = append(view.Unassigned, r)
			continue
		}
		view.Columns[i].Records = append(view.Columns[i].Records, r)
	}

	for i := range view.Columns {
		col := view.Columns[i].Records
		sort.SliceStable(col, func(a, b int) bool {
			ta, tb := col[a].Due.Time(), col[b].Due.Time()
			if !ta.Equal(tb) {
				return ta.Before(tb)
			}
			return col[a].ID < col[b].ID
		})
	}

	return view
}

// ApplyTransition moves a record to the target column and returns the
// updated copy for the caller to persist. Moving a record onto a terminal
// column stamps CompletedAt (only if unset); moving it off a terminal column
// clears it. A transition to the record's current column is a no-op. An
// unknown target fails with ErrInvalidColumn and leaves the record unchanged.
//
// Terminal columns are deliberately not locked against further transitions;
// that policy belongs to the caller.
func ApplyTransition(b Board, r Record, target Status, now time.Time) (Record, error) {
	if target == r.Status {
		return r, nil
	}
	if !b.Has(target) {
		return r, ErrInvalidColumn
	}

	wasTerminal := b.IsTerminal(r.Status)
	r.Status = target
	switch {
	case b.IsTerminal(target):
		if r.CompletedAt == nil {
			stamp := now
			r.CompletedAt = &stamp
		}
	case wasTerminal:
		r.CompletedAt = nil
	}
	return r, nil
}
