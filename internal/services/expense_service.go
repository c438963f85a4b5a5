// Package services holds the business logic orchestration between the store,
// the access layer and the event publisher.
package services

import (
	"context"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// EventPublisher is the subset of the AMQP publisher the services need.
// A nil publisher disables events entirely.
type EventPublisher interface {
	PublishLimitWarning(ctx context.Context, ev amqp.LimitWarningEvent) error
	PublishRecurringMaterialized(ctx context.Context, ev amqp.RecurringMaterializedEvent) error
}

// ExpenseService creates expenses under the limit-enforcement rule and emits
// warning events when the threshold is crossed.
type ExpenseService struct {
	store     storage.Store
	publisher EventPublisher
}

func NewExpenseService(store storage.Store, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{store: store, publisher: publisher}
}

// CreateExpense records a transaction, decrementing the user's salary in the
// same transactional boundary. The returned bool reports whether the warning
// threshold was reached.
func (s *ExpenseService) CreateExpense(ctx context.Context, t core.Transaction) (core.Transaction, bool, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, false, err
	}

	created, warned, err := s.store.RecordExpense(ctx, t)
	if err != nil {
		return core.Transaction{}, false, err
	}

	if warned {
		s.publishWarning(ctx, created)
	}
	return created, warned, nil
}

// publishWarning is best-effort: the expense is already committed, so a
// broker failure only logs.
func (s *ExpenseService) publishWarning(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		return
	}

	limit, err := s.store.GetExpenseLimit(ctx, t.Username)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load limit for warning event",
			"user", t.Username, "error", err)
		return
	}

	ev := amqp.LimitWarningEvent{
		Username:       t.Username,
		Category:       t.Category,
		AmountCents:    t.Amount.Cents,
		RemainingCents: limit.Salary.Cents,
		LimitCents:     limit.Limit.Cents,
	}
	if err := s.publisher.PublishLimitWarning(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish limit warning",
			"user", t.Username, "error", err)
	}
}
