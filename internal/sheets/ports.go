package sheets

import (
	"context"

	"opsboard/internal/core"
)

// ReportWriter appends a finished month summary to an external report.
type ReportWriter interface {
	AppendMonthSummary(ctx context.Context, s core.MonthSummary) (rowRef string, err error)
}
