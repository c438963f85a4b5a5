package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys for published events.
const (
	RouteLimitWarning         = "budget.limit.warning"
	RouteRecurringMaterialize = "budget.recurring.materialized"
)

// LimitWarningEvent is published when an expense drives the remaining salary
// to or below the user's warning threshold.
type LimitWarningEvent struct {
	Username       string    `json:"username"`
	Category       string    `json:"category"`
	AmountCents    int64     `json:"amount_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	LimitCents     int64     `json:"limit_cents"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecurringMaterializedEvent is published each time the recurrence engine
// turns a template into a concrete transaction.
type RecurringMaterializedEvent struct {
	RecurringID   int64     `json:"recurring_id"`
	TransactionID int64     `json:"transaction_id"`
	Username      string    `json:"username"`
	Category      string    `json:"category"`
	AmountCents   int64     `json:"amount_cents"`
	Date          string    `json:"date"`
	Retired       bool      `json:"retired"`
	Timestamp     time.Time `json:"timestamp"`
}

func marshalEvent(v any) ([]byte, error) {
	return json.Marshal(v)
}
