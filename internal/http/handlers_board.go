package http

import (
	"net/http"
	"strconv"
	"time"

	"opsboard/internal/auth"
	"opsboard/internal/core"
)

type recordDTO struct {
	ID          int64  `json:"id"`
	Board       string `json:"board"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Due         string `json:"due,omitempty"`
	Month       string `json:"month"`
	Owner       string `json:"owner,omitempty"`
	Category    string `json:"category,omitempty"`
	Overdue     bool   `json:"overdue"`
	DaysOverdue int    `json:"days_overdue,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func toRecordDTO(r core.Record, now time.Time) recordDTO {
	dto := recordDTO{
		ID:       r.ID,
		Board:    string(r.Board),
		Title:    r.Title,
		Status:   string(r.Status),
		Month:    r.Due.MonthKey(),
		Owner:    r.Owner,
		Category: r.Category,
	}
	if r.Due.IsSet() {
		dto.Due = r.Due.Time().Format("2006-01-02")
	}
	st := core.Dueness(r.Due, now)
	dto.Overdue = st.Overdue
	dto.DaysOverdue = st.DaysOverdue
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

type columnDTO struct {
	ID      string      `json:"id"`
	Records []recordDTO `json:"records"`
}

type boardDTO struct {
	Board      string      `json:"board"`
	Month      string      `json:"month,omitempty"`
	Columns    []columnDTO `json:"columns"`
	Unassigned []recordDTO `json:"unassigned,omitempty"`
}

// handleBoard returns the column view of one board, optionally filtered to
// a ?month=YYYY-MM bucket.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	kind := core.BoardKind(r.PathValue("board"))

	month := ""
	if v := r.URL.Query().Get("month"); v != "" {
		m, ok := monthParam(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		month = m
	}

	view, err := s.boards.Board(r.Context(), id.TenantID, kind, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := time.Now().UTC()
	out := boardDTO{Board: string(kind), Month: month, Columns: make([]columnDTO, 0, len(view.Columns))}
	for _, col := range view.Columns {
		c := columnDTO{ID: string(col.ID), Records: make([]recordDTO, 0, len(col.Records))}
		for _, rec := range col.Records {
			c.Records = append(c.Records, toRecordDTO(rec, now))
		}
		out.Columns = append(out.Columns, c)
	}
	for _, rec := range view.Unassigned {
		out.Unassigned = append(out.Unassigned, toRecordDTO(rec, now))
	}
	writeJSON(w, http.StatusOK, out)
}

type createRecordRequest struct {
	Board    string `json:"board"`
	Title    string `json:"title"`
	Status   string `json:"status,omitempty"`
	Due      string `json:"due,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Category string `json:"category,omitempty"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	due, err := core.ParseWhen(req.Due)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	recID, err := s.boards.CreateRecord(r.Context(), core.Record{
		TenantID: id.TenantID,
		Board:    core.BoardKind(req.Board),
		Title:    req.Title,
		Status:   core.Status(req.Status),
		Due:      due,
		Owner:    req.Owner,
		Category: req.Category,
	}, id.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": recID})
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	recID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	moved, changed, err := s.boards.Transition(r.Context(), id.TenantID, recID, core.Status(req.Target), id.Actor, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if changed {
		s.hub.Broadcast(BoardEvent{
			Type:     "record:transitioned",
			TenantID: moved.TenantID,
			Board:    moved.Board,
			RecordID: moved.ID,
			Status:   moved.Status,
			Actor:    id.Actor,
		})
	}
	writeJSON(w, http.StatusOK, toRecordDTO(moved, time.Now().UTC()))
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	recID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	if err := s.boards.Delete(r.Context(), id.TenantID, recID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProgress reports terminal-column completion against a monthly goal.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	kind := core.BoardKind(r.PathValue("board"))

	month, ok := monthParam(r.URL.Query().Get("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}
	goal := s.defaultGoal
	if v := r.URL.Query().Get("goal"); v != "" {
		g, err := strconv.Atoi(v)
		if err != nil || g < 0 {
			writeError(w, http.StatusBadRequest, "goal must be a non-negative integer")
			return
		}
		goal = g
	}

	progress, err := s.boards.Progress(r.Context(), id.TenantID, kind, month, goal)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":          progress.Month,
		"completed":      progress.Completed,
		"pending":        progress.Pending,
		"goalPercentage": progress.GoalPercentage,
	})
}
