package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"opsboard/internal/core"

	_ "modernc.org/sqlite"
)

const (
	dayLayout = "2006-01-02"
	tsLayout  = time.RFC3339
	numDays   = 7
)

// SQLiteRepository is the durable store for records, habits, transactions
// and forms. All reads return fully populated values; writes are
// last-write-wins.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- records ---

// CreateRecord inserts a new record and returns its id.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.Record) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO records (tenant_id, board, title, status, due_at, owner, category, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TenantID, string(rec.Board), rec.Title, string(rec.Status),
		dueToDB(rec.Due), rec.Owner, rec.Category, timeToDB(rec.CompletedAt))
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record id: %w", err)
	}

	slog.InfoContext(ctx, "record saved",
		"record_id", id, "board", rec.Board, "title", rec.Title, "status", rec.Status)
	return id, nil
}

// GetRecord fetches one record by id within a tenant. Records of other
// tenants are indistinguishable from missing ones.
func (r *SQLiteRepository) GetRecord(ctx context.Context, tenantID, id int64) (core.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, board, title, status, due_at, owner, category, completed_at, created_at
		FROM records WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`, id, tenantID)
	rec, err := scanRecord(row)
	if err != nil {
		return core.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// ListRecords returns a tenant's live records for one board.
func (r *SQLiteRepository) ListRecords(ctx context.Context, tenantID int64, board core.BoardKind) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, board, title, status, due_at, owner, category, completed_at, created_at
		FROM records
		WHERE tenant_id = ? AND board = ? AND deleted_at IS NULL
		ORDER BY id`, tenantID, string(board))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateRecord overwrites a record's mutable fields.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET title = ?, status = ?, due_at = ?, owner = ?, category = ?, completed_at = ?,
		    updated_at = datetime('now')
		WHERE id = ? AND deleted_at IS NULL`,
		rec.Title, string(rec.Status), dueToDB(rec.Due), rec.Owner, rec.Category,
		timeToDB(rec.CompletedAt), rec.ID)
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update record %d: %w", rec.ID, sql.ErrNoRows)
	}
	return nil
}

// SoftDeleteRecord marks a tenant's record deleted; rows are never removed.
func (r *SQLiteRepository) SoftDeleteRecord(ctx context.Context, tenantID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET deleted_at = datetime('now') WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`,
		id, tenantID)
	if err != nil {
		return fmt.Errorf("soft delete record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete record %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("soft delete record %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ListStaleLeads returns live leads in non-terminal columns that haven't
// moved since the cutoff.
func (r *SQLiteRepository) ListStaleLeads(ctx context.Context, cutoff time.Time) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, board, title, status, due_at, owner, category, completed_at, created_at
		FROM records
		WHERE board = ? AND deleted_at IS NULL
		  AND status NOT IN (?, ?)
		  AND updated_at < ?
		ORDER BY updated_at`,
		string(core.BoardLeads), string(core.StatusWon), string(core.StatusLost),
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, fmt.Errorf("list stale leads: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale lead: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- habits ---

// CreateHabit inserts a habit with its serialized schedule.
func (r *SQLiteRepository) CreateHabit(ctx context.Context, h core.Habit) (int64, error) {
	if err := h.Schedule.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO habits (tenant_id, name, schedule) VALUES (?, ?, ?)`,
		h.TenantID, h.Name, scheduleToDB(h.Schedule))
	if err != nil {
		return 0, fmt.Errorf("insert habit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("habit id: %w", err)
	}
	return id, nil
}

// GetHabit fetches one habit by id within a tenant.
func (r *SQLiteRepository) GetHabit(ctx context.Context, tenantID, id int64) (core.Habit, error) {
	var h core.Habit
	var sched string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, schedule FROM habits WHERE id = ? AND tenant_id = ?`, id, tenantID).
		Scan(&h.ID, &h.TenantID, &h.Name, &sched)
	if err != nil {
		return core.Habit{}, fmt.Errorf("get habit %d: %w", id, err)
	}
	h.Schedule, err = scheduleFromDB(sched)
	if err != nil {
		return core.Habit{}, fmt.Errorf("habit %d schedule: %w", id, err)
	}
	return h, nil
}

// ListHabits returns a tenant's habits.
func (r *SQLiteRepository) ListHabits(ctx context.Context, tenantID int64) ([]core.Habit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, schedule FROM habits WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var out []core.Habit
	for rows.Next() {
		var h core.Habit
		var sched string
		if err := rows.Scan(&h.ID, &h.TenantID, &h.Name, &sched); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		if h.Schedule, err = scheduleFromDB(sched); err != nil {
			return nil, fmt.Errorf("habit %d schedule: %w", h.ID, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AddCompletion records a habit completion for one calendar day. The unique
// (habit, day) constraint maps to core.ErrDuplicateCompletion.
func (r *SQLiteRepository) AddCompletion(ctx context.Context, habitID int64, day time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO habit_completions (habit_id, day) VALUES (?, ?)`,
		habitID, day.UTC().Format(dayLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.ErrDuplicateCompletion
		}
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// RemoveCompletion deletes the completion for exactly one day.
func (r *SQLiteRepository) RemoveCompletion(ctx context.Context, habitID int64, day time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM habit_completions WHERE habit_id = ? AND day = ?`,
		habitID, day.UTC().Format(dayLayout))
	if err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}
	return n > 0, nil
}

// ListCompletions returns every completion day for a habit.
func (r *SQLiteRepository) ListCompletions(ctx context.Context, habitID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day FROM habit_completions WHERE habit_id = ? ORDER BY day`, habitID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		t, err := time.Parse(dayLayout, day)
		if err != nil {
			return nil, fmt.Errorf("parse completion day %q: %w", day, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTenantIDs returns every tenant with at least one habit or record,
// for jobs that fan out per tenant.
func (r *SQLiteRepository) ListTenantIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tenant_id FROM habits
		UNION
		SELECT tenant_id FROM records WHERE deleted_at IS NULL
		ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- transactions ---

// AppendTransaction stores a ledger entry and returns a row reference.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (tenant_id, occurred_on, description, type, amount_cents, category)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.TenantID, t.Date.UTC().Format(dayLayout), t.Description,
		string(t.Type), t.Amount.Cents, t.Category)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "transaction saved",
		"id", id, "type", t.Type, "amount_cents", t.Amount.Cents, "category", t.Category)
	return strconv.FormatInt(id, 10), nil
}

// ListTransactionsByMonth returns a tenant's ledger entries for one YYYY-MM
// month.
func (r *SQLiteRepository) ListTransactionsByMonth(ctx context.Context, tenantID int64, month string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, occurred_on, description, type, amount_cents, category
		FROM transactions
		WHERE tenant_id = ? AND occurred_on LIKE ? || '-%'
		ORDER BY occurred_on, id`, tenantID, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var day, typ string
		if err := rows.Scan(&t.ID, &t.TenantID, &day, &t.Description, &typ, &t.Amount.Cents, &t.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TxnType(typ)
		if t.Date, err = time.Parse(dayLayout, day); err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", day, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- forms ---

// CreateForm stores a form and its fields. The schema must already have
// passed core.ValidateSchema.
func (r *SQLiteRepository) CreateForm(ctx context.Context, form core.Form) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin form tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO forms (tenant_id, title) VALUES (?, ?)`, form.TenantID, form.Title)
	if err != nil {
		return 0, fmt.Errorf("insert form: %w", err)
	}
	formID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("form id: %w", err)
	}

	for pos, f := range form.Fields {
		options, err := json.Marshal(f.Options)
		if err != nil {
			return 0, fmt.Errorf("marshal options for %q: %w", f.ID, err)
		}
		var ruleFieldID, ruleExpected any
		if f.Rule != nil {
			ruleFieldID = f.Rule.FieldID
			expected, err := json.Marshal(f.Rule.Expected)
			if err != nil {
				return 0, fmt.Errorf("marshal rule for %q: %w", f.ID, err)
			}
			ruleExpected = string(expected)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO form_fields (form_id, field_id, label, type, required, position, options, rule_field_id, rule_expected)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			formID, f.ID, f.Label, string(f.Type), f.Required, pos, string(options), ruleFieldID, ruleExpected)
		if err != nil {
			return 0, fmt.Errorf("insert field %q: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit form: %w", err)
	}
	return formID, nil
}

// GetForm loads a tenant's form with its fields in declared order.
func (r *SQLiteRepository) GetForm(ctx context.Context, tenantID, id int64) (core.Form, error) {
	var form core.Form
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, title FROM forms WHERE id = ? AND tenant_id = ?`, id, tenantID).
		Scan(&form.ID, &form.TenantID, &form.Title)
	if err != nil {
		return core.Form{}, fmt.Errorf("get form %d: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT field_id, label, type, required, options, rule_field_id, rule_expected
		FROM form_fields WHERE form_id = ? ORDER BY position`, id)
	if err != nil {
		return core.Form{}, fmt.Errorf("list form fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f core.FormField
		var typ string
		var options sql.NullString
		var ruleFieldID, ruleExpected sql.NullString
		if err := rows.Scan(&f.ID, &f.Label, &typ, &f.Required, &options, &ruleFieldID, &ruleExpected); err != nil {
			return core.Form{}, fmt.Errorf("scan form field: %w", err)
		}
		f.Type = core.FieldType(typ)
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &f.Options); err != nil {
				return core.Form{}, fmt.Errorf("unmarshal options for %q: %w", f.ID, err)
			}
		}
		if ruleFieldID.Valid {
			rule := &core.ConditionalRule{FieldID: ruleFieldID.String}
			if ruleExpected.Valid && ruleExpected.String != "" {
				if err := json.Unmarshal([]byte(ruleExpected.String), &rule.Expected); err != nil {
					return core.Form{}, fmt.Errorf("unmarshal rule for %q: %w", f.ID, err)
				}
			}
			f.Rule = rule
		}
		form.Fields = append(form.Fields, f)
	}
	return form, rows.Err()
}

// SaveSubmission stores a validated submission as JSON.
func (r *SQLiteRepository) SaveSubmission(ctx context.Context, formID int64, actor string, resp core.Responses) (int64, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return 0, fmt.Errorf("marshal responses: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO form_submissions (form_id, actor, responses) VALUES (?, ?, ?)`,
		formID, actor, string(payload))
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("submission id: %w", err)
	}
	return id, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.Record, error) {
	var rec core.Record
	var board, status string
	var dueAt, completedAt sql.NullString
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.TenantID, &board, &rec.Title, &status,
		&dueAt, &rec.Owner, &rec.Category, &completedAt, &createdAt); err != nil {
		return core.Record{}, err
	}
	rec.Board = core.BoardKind(board)
	rec.Status = core.Status(status)
	if dueAt.Valid && dueAt.String != "" {
		t, err := time.Parse(tsLayout, dueAt.String)
		if err != nil {
			return core.Record{}, fmt.Errorf("parse due_at %q: %w", dueAt.String, err)
		}
		rec.Due = core.DueOn(t)
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(tsLayout, completedAt.String)
		if err != nil {
			return core.Record{}, fmt.Errorf("parse completed_at %q: %w", completedAt.String, err)
		}
		rec.CompletedAt = &t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

func dueToDB(d core.Due) any {
	if !d.IsSet() {
		return nil
	}
	return d.Time().UTC().Format(tsLayout)
}

func timeToDB(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(tsLayout)
}

const scheduleDaily = "daily"

func scheduleToDB(s core.Schedule) string {
	if s.IsDaily() {
		return scheduleDaily
	}
	days := s.Weekdays()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func scheduleFromDB(s string) (core.Schedule, error) {
	if s == scheduleDaily {
		return core.Daily(), nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n >= numDays {
			return core.Schedule{}, fmt.Errorf("bad schedule value %q", s)
		}
		days = append(days, time.Weekday(n))
	}
	sched := core.OnWeekdays(days...)
	if err := sched.Validate(); err != nil {
		return core.Schedule{}, err
	}
	return sched, nil
}
