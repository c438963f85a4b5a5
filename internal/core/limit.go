package core

import "errors"

var (
	// ErrInsufficientFunds means the expense would drive the remaining salary
	// below zero. The stored salary must stay untouched when this is returned.
	ErrInsufficientFunds = errors.New("insufficient salary balance")

	// ErrLimitNotConfigured means no ExpenseLimit exists for the user yet.
	ErrLimitNotConfigured = errors.New("expense limit not configured")
)

// ApplyExpense evaluates a prospective expense against the user's remaining
// salary and warning threshold. It returns the post-expense salary and whether
// the warning threshold was reached (remaining <= limit).
//
// The function is pure: callers own persisting the decremented salary together
// with the new transaction in one transactional boundary.
func ApplyExpense(salary, limit, amount Money) (remaining Money, warned bool, err error) {
	if amount.Cents > salary.Cents {
		return salary, false, ErrInsufficientFunds
	}
	remaining = Money{Cents: salary.Cents - amount.Cents}
	return remaining, remaining.Cents <= limit.Cents, nil
}
