package http

import (
	"net/http"
	"time"

	"opsboard/internal/auth"
	"opsboard/internal/core"
)

type appendTransactionRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

func (s *Server) handleAppendTransaction(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req appendTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	ref, err := s.ledger.Append(r.Context(), core.Transaction{
		TenantID:    id.TenantID,
		Date:        date,
		Description: req.Description,
		Type:        core.TxnType(req.Type),
		Amount:      core.Money{Cents: cents},
		Category:    req.Category,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}

type monthSummaryDTO struct {
	Month      string              `json:"month"`
	Revenue    int64               `json:"revenue_cents"`
	Expense    int64               `json:"expense_cents"`
	Net        int64               `json:"net_cents"`
	ByCategory []categoryAmountDTO `json:"by_category"`
}

type categoryAmountDTO struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount_cents"`
}

func toMonthSummaryDTO(s core.MonthSummary) monthSummaryDTO {
	out := monthSummaryDTO{
		Month:      s.Month,
		Revenue:    s.Revenue.Cents,
		Expense:    s.Expense.Cents,
		Net:        s.Net.Cents,
		ByCategory: make([]categoryAmountDTO, 0, len(s.ByCategory)),
	}
	for _, c := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryAmountDTO{Name: c.Name, Amount: c.Amount.Cents})
	}
	return out
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	month, ok := monthParam(r.PathValue("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	summary, err := s.ledger.MonthSummary(r.Context(), id.TenantID, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthSummaryDTO(summary))
}

func (s *Server) handleExportMonth(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	month, ok := monthParam(r.PathValue("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	summary, err := s.ledger.ExportMonth(r.Context(), id.TenantID, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthSummaryDTO(summary))
}
