package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"opsboard/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain errors onto HTTP statuses. Validation
// failures carry the offending field ids in the body.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.FieldIDs,
		})
	case errors.Is(err, core.ErrInvalidColumn),
		errors.Is(err, core.ErrUnknownBoard),
		errors.Is(err, core.ErrInvalidConditionalRule),
		errors.Is(err, core.ErrMalformedTimestamp),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrEmptySchedule),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidTxnType):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrDuplicateCompletion):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Error("Internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// monthParam validates a YYYY-MM path or query value.
func monthParam(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if len(v) != 7 || v[4] != '-' {
		return "", false
	}
	year, err := strconv.Atoi(v[:4])
	if err != nil || year < 2000 || year > 2099 {
		return "", false
	}
	month, err := strconv.Atoi(v[5:])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	return v, true
}
