// Package memory provides an in-memory ReportWriter for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"opsboard/internal/core"
	ports "opsboard/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows []core.MonthSummary
}

var _ ports.ReportWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

func (w *Writer) AppendMonthSummary(_ context.Context, s core.MonthSummary) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, s)
	return fmt.Sprintf("row:%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []core.MonthSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]core.MonthSummary, len(w.rows))
	copy(out, w.rows)
	return out
}
