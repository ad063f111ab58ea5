package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"opsboard/internal/cache"
	"opsboard/internal/core"
	"opsboard/internal/sheets"
	"opsboard/internal/storage"
)

// LedgerService records revenue and expense entries and aggregates them
// month by month. A ReportWriter, when configured, receives exported
// month summaries. Summaries are cached per tenant and month; appends
// invalidate the affected entry.
type LedgerService struct {
	storage   *storage.SQLiteRepository
	reports   sheets.ReportWriter
	summaries *cache.LRUCache[core.MonthSummary]
}

func NewLedgerService(storage *storage.SQLiteRepository, reports sheets.ReportWriter) *LedgerService {
	return &LedgerService{
		storage:   storage,
		reports:   reports,
		summaries: cache.NewLRUCache[core.MonthSummary](128, 5*time.Minute),
	}
}

func summaryKey(tenantID int64, month string) string {
	return strconv.FormatInt(tenantID, 10) + ":" + month
}

// Append validates and stores a transaction, returning its reference.
func (s *LedgerService) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	ref, err := s.storage.AppendTransaction(ctx, t)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	s.summaries.Delete(summaryKey(t.TenantID, core.MonthKey(t.Date)))
	return ref, nil
}

// MonthSummary aggregates a tenant's transactions for one month.
func (s *LedgerService) MonthSummary(ctx context.Context, tenantID int64, month string) (core.MonthSummary, error) {
	key := summaryKey(tenantID, month)
	if summary, ok := s.summaries.Get(key); ok {
		return summary, nil
	}

	txns, err := s.storage.ListTransactionsByMonth(ctx, tenantID, month)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("list transactions: %w", err)
	}
	summary := core.Summarize(txns, month)
	s.summaries.Set(key, summary)
	return summary, nil
}

// ExportMonth aggregates a month and appends the summary to the external
// report. Without a configured report sink the summary is still returned.
func (s *LedgerService) ExportMonth(ctx context.Context, tenantID int64, month string) (core.MonthSummary, error) {
	summary, err := s.MonthSummary(ctx, tenantID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	if s.reports == nil {
		slog.WarnContext(ctx, "Report writer not available, skipping export", "month", month)
		return summary, nil
	}
	ref, err := s.reports.AppendMonthSummary(ctx, summary)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("export month %s: %w", month, err)
	}
	slog.InfoContext(ctx, "Exported month summary", "month", month, "ref", ref)
	return summary, nil
}
