package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"opsboard/internal/auth"
	"opsboard/internal/services"
	"opsboard/internal/storage"
)

type testEnv struct {
	srv    *httptest.Server
	tokens *auth.Manager
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewManager("test-secret-at-least-16", time.Hour)
	token, err := tokens.Issue(auth.Identity{Actor: "dana", TenantID: 1})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	s := NewServer("127.0.0.1:0",
		services.NewBoardService(repo, nil),
		services.NewHabitService(repo),
		services.NewLedgerService(repo, nil),
		services.NewFormService(repo, nil),
		tokens, 0)
	srv := httptest.NewServer(s.Server.Handler)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, tokens: tokens, token: token}
}

func (e *testEnv) tokenFor(t *testing.T, actor string, tenantID int64) string {
	t.Helper()
	token, err := e.tokens.Issue(auth.Identity{Actor: actor, TenantID: tenantID})
	if err != nil {
		t.Fatalf("issue token for %s: %v", actor, err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	return e.doAs(t, e.token, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, token, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.srv.Client().Get(env.srv.URL + "/api/boards/posts")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHealthEndpointsSkipAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := env.srv.Client().Get(env.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestRecordLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/records", map[string]string{
		"board": "posts",
		"title": "spring campaign reel",
		"due":   "2026-03-10",
		"owner": "dana",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, resp, &created)

	resp = env.do(t, http.MethodGet, "/api/boards/posts?month=2026-03", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("board status = %d, want 200", resp.StatusCode)
	}
	var view boardDTO
	decode(t, resp, &view)
	if len(view.Columns) == 0 || view.Columns[0].ID != "production" {
		t.Fatalf("unexpected board view: %+v", view)
	}
	if len(view.Columns[0].Records) != 1 || view.Columns[0].Records[0].Month != "2026-03" {
		t.Errorf("production column: %+v", view.Columns[0])
	}

	// Month filter excludes the record.
	resp = env.do(t, http.MethodGet, "/api/boards/posts?month=2026-04", nil)
	decode(t, resp, &view)
	for _, col := range view.Columns {
		if len(col.Records) != 0 {
			t.Errorf("column %s not empty under foreign month filter", col.ID)
		}
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/records/%d/transition", created.ID),
		map[string]string{"target": "published"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition status = %d, want 200", resp.StatusCode)
	}
	var moved recordDTO
	decode(t, resp, &moved)
	if moved.Status != "published" || moved.CompletedAt == "" {
		t.Errorf("moved = %+v, want published with completion stamp", moved)
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/records/%d/transition", created.ID),
		map[string]string{"target": "archived"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid column status = %d, want 422", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/records/%d", created.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
}

func TestTenantIsolationOnByIDRoutes(t *testing.T) {
	env := newTestEnv(t)
	foreign := env.tokenFor(t, "mallory", 2)

	var rec struct {
		ID int64 `json:"id"`
	}
	resp := env.do(t, http.MethodPost, "/api/records", map[string]string{
		"board": "posts",
		"title": "tenant-1 secret campaign",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create record status = %d, want 201", resp.StatusCode)
	}
	decode(t, resp, &rec)

	var habit struct {
		ID int64 `json:"id"`
	}
	resp = env.do(t, http.MethodPost, "/api/habits", map[string]any{"name": "standup", "daily": true})
	decode(t, resp, &habit)

	var form struct {
		ID int64 `json:"id"`
	}
	resp = env.do(t, http.MethodPost, "/api/forms", map[string]any{
		"title": "intake",
		"fields": []map[string]any{
			{"id": "name", "label": "Name", "type": "text"},
		},
	})
	decode(t, resp, &form)

	foreignCalls := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, fmt.Sprintf("/api/records/%d/transition", rec.ID), map[string]string{"target": "published"}},
		{http.MethodDelete, fmt.Sprintf("/api/records/%d", rec.ID), nil},
		{http.MethodPost, fmt.Sprintf("/api/habits/%d/complete", habit.ID), map[string]string{}},
		{http.MethodDelete, fmt.Sprintf("/api/habits/%d/complete?day=2026-03-02", habit.ID), nil},
		{http.MethodGet, fmt.Sprintf("/api/habits/%d/streaks", habit.ID), nil},
		{http.MethodGet, fmt.Sprintf("/api/forms/%d", form.ID), nil},
		{http.MethodPost, fmt.Sprintf("/api/forms/%d/submissions", form.ID), map[string]any{"responses": map[string][]string{}}},
	}
	for _, call := range foreignCalls {
		resp := env.doAs(t, foreign, call.method, call.path, call.body)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s %s as foreign tenant: status = %d, want 404", call.method, call.path, resp.StatusCode)
		}
	}

	// The record is untouched for its own tenant.
	resp = env.do(t, http.MethodGet, "/api/boards/posts", nil)
	var view boardDTO
	decode(t, resp, &view)
	if len(view.Columns) == 0 || len(view.Columns[0].Records) != 1 {
		t.Fatalf("record missing after foreign-tenant calls: %+v", view)
	}
	if view.Columns[0].Records[0].Status != "production" {
		t.Errorf("record status = %q, want untouched production", view.Columns[0].Records[0].Status)
	}
}

func TestBoardProgress(t *testing.T) {
	env := newTestEnv(t)

	var first struct {
		ID int64 `json:"id"`
	}
	resp := env.do(t, http.MethodPost, "/api/records", map[string]string{
		"board": "posts",
		"title": "spring campaign reel",
		"due":   "2026-03-10",
	})
	decode(t, resp, &first)
	resp = env.do(t, http.MethodPost, "/api/records", map[string]string{
		"board": "posts",
		"title": "april teaser",
		"due":   "2026-03-20",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/records/%d/transition", first.ID),
		map[string]string{"target": "published"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition status = %d, want 200", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/boards/posts/progress?month=2026-03&goal=4", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress status = %d, want 200", resp.StatusCode)
	}
	var progress struct {
		Month          string `json:"month"`
		Completed      int    `json:"completed"`
		Pending        int    `json:"pending"`
		GoalPercentage int    `json:"goalPercentage"`
	}
	decode(t, resp, &progress)
	if progress.Month != "2026-03" || progress.Completed != 1 || progress.Pending != 1 {
		t.Errorf("progress = %+v, want 1 completed 1 pending in 2026-03", progress)
	}
	if progress.GoalPercentage != 25 {
		t.Errorf("goalPercentage = %d, want 25", progress.GoalPercentage)
	}

	resp = env.do(t, http.MethodGet, "/api/boards/posts/progress?month=2026-03&goal=-1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative goal status = %d, want 400", resp.StatusCode)
	}
}

func TestBoardRejectsBadMonth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/boards/posts?month=march", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownBoard(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/boards/pipelines", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestHabitEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/habits", map[string]any{
		"name": "post client story",
		"days": []string{"monday", "wednesday", "friday"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create habit status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, resp, &created)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/habits/%d/complete", created.ID),
		map[string]string{"day": "2026-03-02"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("complete status = %d, want 204", resp.StatusCode)
	}

	// Completing the same day again conflicts.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/habits/%d/complete", created.ID),
		map[string]string{"day": "2026-03-02"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate complete status = %d, want 409", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/habits/%d/streaks", created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("streaks status = %d, want 200", resp.StatusCode)
	}
	var streaks struct {
		Total int `json:"totalCompleted"`
	}
	decode(t, resp, &streaks)
	if streaks.Total != 1 {
		t.Errorf("totalCompleted = %d, want 1", streaks.Total)
	}

	resp = env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/habits/%d/complete?day=2026-03-02", created.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("uncomplete status = %d, want 204", resp.StatusCode)
	}
	resp = env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/habits/%d/complete?day=2026-03-02", created.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second uncomplete status = %d, want 404", resp.StatusCode)
	}
}

func TestLedgerEndpoints(t *testing.T) {
	env := newTestEnv(t)

	entries := []map[string]string{
		{"date": "2026-03-03", "description": "retainer", "type": "revenue", "amount": "2500.00", "category": "retainers"},
		{"date": "2026-03-05", "description": "editing suite", "type": "expense", "amount": "300,50", "category": "software"},
	}
	for _, e := range entries {
		resp := env.do(t, http.MethodPost, "/api/transactions", e)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("append status = %d, want 201", resp.StatusCode)
		}
	}

	resp := env.do(t, http.MethodGet, "/api/finance/2026-03", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d, want 200", resp.StatusCode)
	}
	var summary monthSummaryDTO
	decode(t, resp, &summary)
	if summary.Revenue != 250000 || summary.Expense != 30050 || summary.Net != 219950 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.ByCategory) != 1 || summary.ByCategory[0].Name != "software" {
		t.Errorf("by_category = %+v, want the software expense", summary.ByCategory)
	}
}

func TestFormEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/forms", map[string]any{
		"title": "campaign briefing",
		"fields": []map[string]any{
			{
				"id": "channel", "label": "Primary channel", "type": "choice", "required": true,
				"options": []map[string]string{
					{"id": "ig", "label": "Instagram"},
					{"id": "tt", "label": "TikTok"},
				},
			},
			{
				"id": "budget", "label": "Paid budget", "type": "number", "required": true,
				"rule": map[string]any{"field_id": "channel", "expected": []string{"Instagram"}},
			},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create form status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, resp, &created)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/forms/%d", created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get form status = %d, want 200", resp.StatusCode)
	}

	// Hidden required field does not block submission.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/forms/%d/submissions", created.ID),
		map[string]any{"responses": map[string][]string{"channel": {"TikTok"}}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201", resp.StatusCode)
	}

	// Visible required field left empty fails and names the field.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/forms/%d/submissions", created.ID),
		map[string]any{"responses": map[string][]string{"channel": {"Instagram"}}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid submit status = %d, want 422", resp.StatusCode)
	}
	var failure struct {
		Fields []string `json:"fields"`
	}
	decode(t, resp, &failure)
	if len(failure.Fields) != 1 || failure.Fields[0] != "budget" {
		t.Errorf("fields = %v, want [budget]", failure.Fields)
	}

	// Broken schemas are rejected at authoring time.
	resp = env.do(t, http.MethodPost, "/api/forms", map[string]any{
		"title": "broken",
		"fields": []map[string]any{
			{"id": "a", "label": "A", "type": "text",
				"rule": map[string]any{"field_id": "missing", "expected": []string{"x"}}},
		},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("broken schema status = %d, want 422", resp.StatusCode)
	}
}
