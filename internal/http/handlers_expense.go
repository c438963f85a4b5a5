package http

import (
	"log/slog"
	"net/http"

	"budget/internal/core"
)

// limitWarningMessage is returned alongside a successful expense when the
// remaining salary reaches the configured threshold.
const limitWarningMessage = "Warning: Your remaining salary is at or below your expense limit!"

type expenseRequest struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
	Date     core.Date  `json:"date"`
}

type transactionResponse struct {
	ID       int64      `json:"id"`
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
	Date     core.Date  `json:"date"`
	Username string     `json:"username"`
}

type createExpenseResponse struct {
	Expense transactionResponse `json:"expense"`
	Warning string              `json:"warning,omitempty"`
}

type expenseLimitRequest struct {
	Salary core.Money `json:"salary"`
	Limit  core.Money `json:"limit"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:       t.ID,
		Category: t.Category,
		Amount:   t.Amount,
		Date:     t.Date,
		Username: t.Username,
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	t := core.Transaction{
		Category: req.Category,
		Amount:   req.Amount,
		Date:     req.Date,
		Username: usernameFrom(r.Context()),
	}

	created, warned, err := s.expenses.CreateExpense(r.Context(), t)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	resp := createExpenseResponse{Expense: toTransactionResponse(created)}
	if warned {
		resp.Warning = limitWarningMessage
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context(), usernameFrom(r.Context()))
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	t, err := s.store.GetTransaction(r.Context(), usernameFrom(r.Context()), id)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	username := usernameFrom(r.Context())
	if err := s.store.DeleteTransaction(r.Context(), username, id); err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	slog.InfoContext(r.Context(), "Expense deleted", "username", username, "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}

// handleSetExpenseLimit upserts the caller's limit record, overwriting any
// previous salary and threshold.
func (s *Server) handleSetExpenseLimit(w http.ResponseWriter, r *http.Request) {
	var req expenseLimitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Salary.Cents < 0 || req.Limit.Cents < 0 {
		writeError(w, http.StatusBadRequest, "salary and limit must not be negative")
		return
	}

	l := core.ExpenseLimit{
		Username: usernameFrom(r.Context()),
		Salary:   req.Salary,
		Limit:    req.Limit,
	}
	if err := s.store.SetExpenseLimit(r.Context(), l); err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]core.Money{
		"salary": l.Salary,
		"limit":  l.Limit,
	})
}
