package http

import (
	"log/slog"
	"net/http"

	"budget/internal/core"
)

type recurringExpenseRequest struct {
	Category  string     `json:"category"`
	Amount    core.Money `json:"amount"`
	Frequency string     `json:"frequency"`
	StartDate core.Date  `json:"start_date"`
	EndDate   core.Date  `json:"end_date"`
}

type recurringExpenseResponse struct {
	ID        int64      `json:"id"`
	Category  string     `json:"category"`
	Amount    core.Money `json:"amount"`
	Frequency string     `json:"frequency"`
	StartDate core.Date  `json:"start_date"`
	EndDate   core.Date  `json:"end_date"`
	NextDue   core.Date  `json:"next_due_date"`
	Username  string     `json:"username"`
}

func toRecurringResponse(re core.RecurringExpense) recurringExpenseResponse {
	return recurringExpenseResponse{
		ID:        re.ID,
		Category:  re.Category,
		Amount:    re.Amount,
		Frequency: string(re.Frequency),
		StartDate: re.StartDate,
		EndDate:   re.EndDate,
		NextDue:   re.NextDue,
		Username:  re.Username,
	}
}

func (s *Server) handleCreateRecurringExpense(w http.ResponseWriter, r *http.Request) {
	var req recurringExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	freq, err := core.ParseFrequency(req.Frequency)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	re := core.RecurringExpense{
		Username:  usernameFrom(r.Context()),
		Category:  req.Category,
		Amount:    req.Amount,
		Frequency: freq,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		NextDue:   req.StartDate, // first occurrence is the start date itself
	}
	if err := re.Validate(); err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	created, err := s.store.CreateRecurringExpense(r.Context(), re)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	slog.InfoContext(r.Context(), "Recurring expense created",
		"username", created.Username,
		"id", created.ID,
		"frequency", created.Frequency,
		"next_due", created.NextDue.String())
	writeJSON(w, http.StatusCreated, toRecurringResponse(created))
}

func (s *Server) handleListRecurringExpenses(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.ListRecurringExpenses(r.Context(), usernameFrom(r.Context()))
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	out := make([]recurringExpenseResponse, 0, len(res))
	for _, re := range res {
		out = append(out, toRecurringResponse(re))
	}
	writeJSON(w, http.StatusOK, out)
}
