// Package storage provides the durable ledger behind the budget API: users,
// transactions, expense limits and recurring-expense templates. Three backends
// implement the same Store interface: SQLite (default), Postgres, and an
// in-memory store used for tests and local development.
package storage

import (
	"context"
	"errors"

	"budget/internal/core"
)

var (
	// ErrNotFound covers both genuinely absent records and records owned by
	// another user; callers must not be able to tell the two apart.
	ErrNotFound = errors.New("record not found")

	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already registered")
)

// CategoryTrend is one row of the category-trends aggregation: total spending
// for a category within a YYYY-MM month bucket.
type CategoryTrend struct {
	Category string     `json:"category"`
	Month    string     `json:"month"`
	Total    core.Money `json:"total"`
}

// CategoryTotal is the all-time total spending for a single category.
type CategoryTotal struct {
	Category string     `json:"category"`
	Total    core.Money `json:"total"`
}

// Store is the ledger behind the API. Every method that touches user-owned
// data takes the owning username and scopes its queries to it.
type Store interface {
	// CreateUser persists a new user. Fails with ErrUsernameTaken when the
	// username already exists.
	CreateUser(ctx context.Context, user core.User) error

	// GetUser fetches a user by username. Fails with ErrNotFound.
	GetUser(ctx context.Context, username string) (core.User, error)

	// RecordExpense applies the limit-enforcement rule and, when it passes,
	// persists the decremented salary and the new transaction atomically.
	// The read-modify-write of the salary serializes per user, never globally.
	// Fails with core.ErrLimitNotConfigured or core.ErrInsufficientFunds;
	// in both cases the stored salary is unchanged. The returned bool reports
	// whether the post-expense salary reached the warning threshold.
	RecordExpense(ctx context.Context, t core.Transaction) (core.Transaction, bool, error)

	// ListTransactions returns all transactions owned by the user.
	ListTransactions(ctx context.Context, username string) ([]core.Transaction, error)

	// GetTransaction fetches one transaction; ErrNotFound when absent or not owned.
	GetTransaction(ctx context.Context, username string, id int64) (core.Transaction, error)

	// DeleteTransaction removes one transaction; ErrNotFound when absent or not owned.
	DeleteTransaction(ctx context.Context, username string, id int64) error

	// SetExpenseLimit upserts the user's limit record, overwriting salary and
	// limit unconditionally.
	SetExpenseLimit(ctx context.Context, l core.ExpenseLimit) error

	// GetExpenseLimit fetches the user's limit record; ErrNotFound when unset.
	GetExpenseLimit(ctx context.Context, username string) (core.ExpenseLimit, error)

	// CreateRecurringExpense persists a validated template with NextDue
	// initialized to its start date, returning the stored record with its ID.
	CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error)

	// ListRecurringExpenses returns all templates owned by the user.
	ListRecurringExpenses(ctx context.Context, username string) ([]core.RecurringExpense, error)

	// DueRecurringExpenses returns every template (all users) with
	// next_due <= asOf, ordered by ID for deterministic processing.
	DueRecurringExpenses(ctx context.Context, asOf core.Date) ([]core.RecurringExpense, error)

	// MaterializeRecurring commits one engine transition atomically: it inserts
	// a transaction dated re.NextDue and either advances next_due to next or,
	// when retire is set, deletes the template. Either everything applies or
	// nothing does.
	MaterializeRecurring(ctx context.Context, re core.RecurringExpense, next core.Date, retire bool) (core.Transaction, error)

	// CategoryTrends aggregates the user's transactions into per-category
	// monthly totals, sorted by month then category. Zero from/to dates mean
	// an open-ended range.
	CategoryTrends(ctx context.Context, username string, from, to core.Date) ([]CategoryTrend, error)

	// CategoryTotals aggregates the user's transactions into per-category
	// totals, sorted by category.
	CategoryTotals(ctx context.Context, username string) ([]CategoryTotal, error)

	Close() error
}
