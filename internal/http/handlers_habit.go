package http

import (
	"net/http"
	"strings"
	"time"

	"opsboard/internal/auth"
	"opsboard/internal/core"
)

type createHabitRequest struct {
	Name  string   `json:"name"`
	Daily bool     `json:"daily,omitempty"`
	Days  []string `json:"days,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseSchedule(req createHabitRequest) (core.Schedule, bool) {
	if req.Daily {
		return core.Daily(), true
	}
	days := make([]time.Weekday, 0, len(req.Days))
	for _, name := range req.Days {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return core.Schedule{}, false
		}
		days = append(days, d)
	}
	return core.OnWeekdays(days...), true
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req createHabitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	schedule, ok := parseSchedule(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown weekday name")
		return
	}

	habitID, err := s.habits.CreateHabit(r.Context(), core.Habit{
		TenantID: id.TenantID,
		Name:     req.Name,
		Schedule: schedule,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": habitID})
}

type habitDTO struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Daily bool     `json:"daily"`
	Days  []string `json:"days,omitempty"`
}

func toHabitDTO(h core.Habit) habitDTO {
	dto := habitDTO{ID: h.ID, Name: h.Name, Daily: h.Schedule.IsDaily()}
	if !dto.Daily {
		for _, d := range h.Schedule.Weekdays() {
			dto.Days = append(dto.Days, strings.ToLower(d.String()))
		}
	}
	return dto
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	habits, err := s.habits.ListHabits(r.Context(), id.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]habitDTO, 0, len(habits))
	for _, h := range habits {
		out = append(out, toHabitDTO(h))
	}
	writeJSON(w, http.StatusOK, out)
}

type completionRequest struct {
	Day string `json:"day,omitempty"`
}

// completionDay resolves the request's day, defaulting to today.
func completionDay(req completionRequest) (time.Time, bool) {
	if req.Day == "" {
		return time.Now().UTC(), true
	}
	d, err := time.Parse("2006-01-02", req.Day)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	habitID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	day, ok := completionDay(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	if err := s.habits.Complete(r.Context(), id.TenantID, habitID, day); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUncomplete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	habitID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}
	day := time.Now().UTC()
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = d
	}

	removed, err := s.habits.Uncomplete(r.Context(), id.TenantID, habitID, day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no completion on that day")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStreaks(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	habitID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	res, err := s.habits.Streaks(r.Context(), id.TenantID, habitID, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"currentStreak":  res.Current,
		"maxStreak":      res.Max,
		"totalCompleted": res.TotalCompleted,
	})
}
