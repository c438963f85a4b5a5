package services

import (
	"context"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// RecurringProcessor sweeps due recurring-expense templates and materializes
// them into transactions.
//
// Each record's transition (insert transaction + advance or retire the
// schedule) commits atomically in the store; a failure on one record logs and
// moves on to the rest, so a single bad row never starves the whole sweep.
type RecurringProcessor struct {
	store     storage.Store
	publisher EventPublisher

	// catchUp controls behavior when several periods have elapsed since the
	// last sweep. When false (default, matching the daily-tick deployment) a
	// record advances one period per sweep. When true the record is advanced
	// repeatedly until its next due date lands in the future, emitting one
	// transaction per missed period.
	catchUp bool
}

func NewRecurringProcessor(store storage.Store, publisher EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{store: store, publisher: publisher}
}

// WithCatchUp enables full catch-up of missed periods within a single sweep.
func (p *RecurringProcessor) WithCatchUp(enabled bool) *RecurringProcessor {
	p.catchUp = enabled
	return p
}

// ProcessDue materializes every template whose next due date is on or before
// now. It returns the number of transactions created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	today := core.DateOf(now)

	due, err := p.store.DueRecurringExpenses(ctx, today)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Processing recurring expenses",
		"due", len(due),
		"as_of", today.String())

	created := 0
	for _, re := range due {
		n, err := p.processRecord(ctx, re, today)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring expense",
				"id", re.ID,
				"user", re.Username,
				"category", re.Category,
				"error", err)
			continue
		}
	}

	slog.InfoContext(ctx, "Recurring expense sweep complete",
		"transactions_created", created,
		"records_due", len(due))
	return created, nil
}

// processRecord advances one template. In catch-up mode it keeps advancing
// until the next due date is in the future or the record retires.
func (p *RecurringProcessor) processRecord(ctx context.Context, re core.RecurringExpense, today core.Date) (int, error) {
	created := 0
	for {
		next := core.NextOccurrence(re.NextDue, re.Frequency)
		retire := re.Retires(next)

		tx, err := p.store.MaterializeRecurring(ctx, re, next, retire)
		if err != nil {
			return created, err
		}
		created++

		p.publishMaterialized(ctx, re, tx, retire)

		if retire {
			slog.InfoContext(ctx, "Recurring expense retired",
				"id", re.ID,
				"user", re.Username,
				"end_date", re.EndDate.String())
			return created, nil
		}

		re.NextDue = next
		if !p.catchUp || next.After(today.Time) {
			return created, nil
		}
	}
}

func (p *RecurringProcessor) publishMaterialized(ctx context.Context, re core.RecurringExpense, tx core.Transaction, retired bool) {
	if p.publisher == nil {
		return
	}
	ev := amqp.RecurringMaterializedEvent{
		RecurringID:   re.ID,
		TransactionID: tx.ID,
		Username:      tx.Username,
		Category:      tx.Category,
		AmountCents:   tx.Amount.Cents,
		Date:          tx.Date.String(),
		Retired:       retired,
	}
	if err := p.publisher.PublishRecurringMaterialized(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish materialization event",
			"recurring_id", re.ID, "error", err)
	}
}
