package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"opsboard/internal/core"
	"opsboard/internal/sheets/memory"
	"opsboard/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestBoardServiceCreateAndTransition(t *testing.T) {
	svc := NewBoardService(newTestStorage(t), nil)
	ctx := context.Background()

	id, err := svc.CreateRecord(ctx, core.Record{
		TenantID: 1,
		Board:    core.BoardPosts,
		Title:    "spring campaign reel",
		Due:      core.DueOn(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)),
		Owner:    "dana",
	}, "dana")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	// Empty status defaults to the first column.
	view, err := svc.Board(ctx, 1, core.BoardPosts, "")
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if len(view.Columns) == 0 || view.Columns[0].ID != core.StatusProduction {
		t.Fatalf("unexpected board view: %+v", view)
	}
	if len(view.Columns[0].Records) != 1 {
		t.Errorf("production column has %d records, want 1", len(view.Columns[0].Records))
	}

	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	moved, changed, err := svc.Transition(ctx, 1, id, core.StatusPublished, "dana", now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !changed {
		t.Error("Transition reported no change for a real move")
	}
	if moved.Status != core.StatusPublished || moved.CompletedAt == nil {
		t.Errorf("after transition: %+v", moved)
	}

	// The stamp must survive a reload.
	reloaded, changed, err := svc.Transition(ctx, 1, id, core.StatusPublished, "dana", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("idempotent Transition: %v", err)
	}
	if changed {
		t.Error("Transition reported a change for a same-column no-op")
	}
	if reloaded.CompletedAt == nil || !reloaded.CompletedAt.Equal(*moved.CompletedAt) {
		t.Errorf("CompletedAt changed on no-op transition: %v vs %v", reloaded.CompletedAt, moved.CompletedAt)
	}
}

func TestBoardServiceScopedToTenant(t *testing.T) {
	svc := NewBoardService(newTestStorage(t), nil)
	ctx := context.Background()

	id, err := svc.CreateRecord(ctx, core.Record{
		TenantID: 1, Board: core.BoardPosts, Title: "private campaign",
	}, "dana")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	_, _, err = svc.Transition(ctx, 2, id, core.StatusPublished, "mallory", time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("foreign-tenant Transition error = %v, want sql.ErrNoRows", err)
	}
	if err := svc.Delete(ctx, 2, id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("foreign-tenant Delete error = %v, want sql.ErrNoRows", err)
	}

	view, err := svc.Board(ctx, 1, core.BoardPosts, "")
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if len(view.Columns) == 0 || len(view.Columns[0].Records) != 1 {
		t.Errorf("record lost after foreign-tenant calls: %+v", view)
	}
	if view.Columns[0].Records[0].Status != core.StatusProduction {
		t.Errorf("record moved by foreign tenant: %+v", view.Columns[0].Records[0])
	}
}

func TestBoardServiceRejectsInvalidColumn(t *testing.T) {
	svc := NewBoardService(newTestStorage(t), nil)
	ctx := context.Background()

	id, err := svc.CreateRecord(ctx, core.Record{
		TenantID: 1, Board: core.BoardTasks, Title: "invoice run",
	}, "dana")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	_, _, err = svc.Transition(ctx, 1, id, core.StatusPublished, "dana", time.Now())
	if !errors.Is(err, core.ErrInvalidColumn) {
		t.Errorf("error = %v, want ErrInvalidColumn", err)
	}
}

func TestBoardServiceCreateUnknownBoard(t *testing.T) {
	svc := NewBoardService(newTestStorage(t), nil)

	_, err := svc.CreateRecord(context.Background(), core.Record{
		TenantID: 1, Board: "pipelines", Title: "x",
	}, "dana")
	if !errors.Is(err, core.ErrUnknownBoard) {
		t.Errorf("error = %v, want ErrUnknownBoard", err)
	}
}

func TestHabitServiceStreaks(t *testing.T) {
	svc := NewHabitService(newTestStorage(t))
	ctx := context.Background()

	id, err := svc.CreateHabit(ctx, core.Habit{
		TenantID: 1,
		Name:     "post client story",
		Schedule: core.OnWeekdays(time.Monday, time.Wednesday, time.Friday),
	})
	if err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}

	// March 2026: 2=Mon, 4=Wed, 6=Fri.
	for _, day := range []int{2, 4, 6} {
		if err := svc.Complete(ctx, 1, id, time.Date(2026, 3, day, 10, 0, 0, 0, time.UTC)); err != nil {
			t.Fatalf("Complete day %d: %v", day, err)
		}
	}

	err = svc.Complete(ctx, 1, id, time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC))
	if !errors.Is(err, core.ErrDuplicateCompletion) {
		t.Errorf("duplicate Complete error = %v, want ErrDuplicateCompletion", err)
	}

	today := time.Date(2026, 3, 7, 8, 0, 0, 0, time.UTC) // Saturday
	res, err := svc.Streaks(ctx, 1, id, today)
	if err != nil {
		t.Fatalf("Streaks: %v", err)
	}
	if res.Current != 3 || res.Max != 3 || res.TotalCompleted != 3 {
		t.Errorf("Streaks = %+v, want current 3 max 3 total 3", res)
	}

	removed, err := svc.Uncomplete(ctx, 1, id, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	if err != nil || !removed {
		t.Fatalf("Uncomplete = (%v, %v), want (true, nil)", removed, err)
	}
	res, err = svc.Streaks(ctx, 1, id, today)
	if err != nil {
		t.Fatalf("Streaks after Uncomplete: %v", err)
	}
	if res.Current != 0 || res.Max != 2 {
		t.Errorf("Streaks after Uncomplete = %+v, want current 0 max 2", res)
	}
}

func TestHabitServiceRejectsEmptySchedule(t *testing.T) {
	svc := NewHabitService(newTestStorage(t))

	_, err := svc.CreateHabit(context.Background(), core.Habit{TenantID: 1, Name: "x"})
	if !errors.Is(err, core.ErrEmptySchedule) {
		t.Errorf("error = %v, want ErrEmptySchedule", err)
	}
}

func TestLedgerServiceMonthSummaryAndExport(t *testing.T) {
	reports := memory.New()
	svc := NewLedgerService(newTestStorage(t), reports)
	ctx := context.Background()

	entries := []struct {
		day   int
		typ   core.TxnType
		cents int64
		cat   string
	}{
		{3, core.Revenue, 250000, "retainers"},
		{10, core.Revenue, 80000, "one-off"},
		{5, core.Expense, 30000, "software"},
		{20, core.Expense, 12000, "contractors"},
	}
	for _, e := range entries {
		_, err := svc.Append(ctx, core.Transaction{
			TenantID:    1,
			Date:        time.Date(2026, 3, e.day, 0, 0, 0, 0, time.UTC),
			Description: e.cat,
			Type:        e.typ,
			Amount:      core.Money{Cents: e.cents},
			Category:    e.cat,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	summary, err := svc.ExportMonth(ctx, 1, "2026-03")
	if err != nil {
		t.Fatalf("ExportMonth: %v", err)
	}
	if summary.Revenue.Cents != 330000 || summary.Expense.Cents != 42000 || summary.Net.Cents != 288000 {
		t.Errorf("summary = %+v", summary)
	}

	rows := reports.Rows()
	if len(rows) != 1 || rows[0].Month != "2026-03" {
		t.Errorf("report rows = %+v, want one 2026-03 row", rows)
	}
}

func TestLedgerServiceCacheInvalidatedOnAppend(t *testing.T) {
	svc := NewLedgerService(newTestStorage(t), nil)
	ctx := context.Background()

	txn := core.Transaction{
		TenantID:    1,
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "retainer",
		Type:        core.Revenue,
		Amount:      core.Money{Cents: 100000},
		Category:    "retainers",
	}
	if _, err := svc.Append(ctx, txn); err != nil {
		t.Fatalf("Append: %v", err)
	}

	first, err := svc.MonthSummary(ctx, 1, "2026-03")
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if first.Revenue.Cents != 100000 {
		t.Fatalf("Revenue = %d, want 100000", first.Revenue.Cents)
	}

	// A second append must bust the cached summary.
	txn.Description = "bonus"
	if _, err := svc.Append(ctx, txn); err != nil {
		t.Fatalf("second Append: %v", err)
	}
	second, err := svc.MonthSummary(ctx, 1, "2026-03")
	if err != nil {
		t.Fatalf("MonthSummary after append: %v", err)
	}
	if second.Revenue.Cents != 200000 {
		t.Errorf("Revenue = %d, want 200000", second.Revenue.Cents)
	}
}

func TestLedgerServiceRejectsInvalidTransaction(t *testing.T) {
	svc := NewLedgerService(newTestStorage(t), nil)

	_, err := svc.Append(context.Background(), core.Transaction{
		TenantID:    1,
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "bad",
		Type:        core.Expense,
		Amount:      core.Money{Cents: -5},
		Category:    "misc",
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("error = %v, want ErrInvalidAmount", err)
	}
}

func TestFormServiceCreateAndSubmit(t *testing.T) {
	svc := NewFormService(newTestStorage(t), nil)
	ctx := context.Background()

	form := core.Form{
		TenantID: 1,
		Title:    "campaign briefing",
		Fields: []core.FormField{
			{
				ID: "channel", Label: "Primary channel", Type: core.FieldChoice, Required: true,
				Options: []core.FieldOption{
					core.NewFieldOption("ig", "Instagram", ""),
					core.NewFieldOption("tt", "TikTok", ""),
				},
			},
			{
				ID: "budget", Label: "Paid budget", Type: core.FieldNumber, Required: true,
				Rule: &core.ConditionalRule{FieldID: "channel", Expected: []string{"Instagram"}},
			},
		},
	}

	id, err := svc.CreateForm(ctx, form)
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}

	// Hidden required field does not block submission.
	subID, err := svc.Submit(ctx, 1, id, "client-a", core.Responses{"channel": {"TikTok"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if subID == 0 {
		t.Error("submission id = 0")
	}

	// Visible required field left empty fails with the field named.
	_, err = svc.Submit(ctx, 1, id, "client-a", core.Responses{"channel": {"Instagram"}})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *core.ValidationError", err)
	}
	if len(verr.FieldIDs) != 1 || verr.FieldIDs[0] != "budget" {
		t.Errorf("FieldIDs = %v, want [budget]", verr.FieldIDs)
	}
}

func TestFormServiceRejectsBrokenSchema(t *testing.T) {
	svc := NewFormService(newTestStorage(t), nil)

	_, err := svc.CreateForm(context.Background(), core.Form{
		TenantID: 1,
		Title:    "broken",
		Fields: []core.FormField{
			{ID: "a", Label: "A", Type: core.FieldText,
				Rule: &core.ConditionalRule{FieldID: "missing", Expected: []string{"x"}}},
		},
	})
	if !errors.Is(err, core.ErrInvalidConditionalRule) {
		t.Errorf("error = %v, want ErrInvalidConditionalRule", err)
	}
}
