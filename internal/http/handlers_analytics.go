package http

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"budget/internal/core"
)

// handleCategoryTrends aggregates the caller's spending into per-category
// monthly buckets. Optional start_date/end_date query parameters narrow the
// range; either side may be omitted.
func (s *Server) handleCategoryTrends(w http.ResponseWriter, r *http.Request) {
	from, ok := dateQueryParam(w, r, "start_date")
	if !ok {
		return
	}
	to, ok := dateQueryParam(w, r, "end_date")
	if !ok {
		return
	}

	trends, err := s.store.CategoryTrends(r.Context(), usernameFrom(r.Context()), from, to)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

// handleExportReport streams the caller's full ledger as CSV: one row per
// transaction, a blank line, then per-category lifetime totals.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	txs, err := s.store.ListTransactions(r.Context(), username)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}
	totals, err := s.store.CategoryTotals(r.Context(), username)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_financial_report.csv", username))

	cw := csv.NewWriter(w)

	cw.Write([]string{"Date", "Category", "Amount", "User"})
	for _, t := range txs {
		cw.Write([]string{t.Date.String(), t.Category, t.Amount.Decimal(), t.Username})
	}

	cw.Write([]string{})
	cw.Write([]string{"Category", "Total Spending"})
	for _, ct := range totals {
		cw.Write([]string{ct.Category, ct.Total.Decimal()})
	}

	cw.Flush()
}

// dateQueryParam parses an optional YYYY-MM-DD query parameter. A missing or
// empty parameter yields the zero Date, meaning "unbounded".
func dateQueryParam(w http.ResponseWriter, r *http.Request, name string) (core.Date, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return core.Date{}, true
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: expected YYYY-MM-DD", name))
		return core.Date{}, false
	}
	return d, true
}
