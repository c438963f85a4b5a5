package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	// Frequency is the recurrence period of a RecurringExpense.
	Frequency string

	// Date is a calendar date (UTC, midnight). The time portion is never significant.
	Date struct {
		time.Time
	}

	// Money is an amount in cents. All arithmetic happens on cents to avoid
	// floating-point drift.
	Money struct {
		Cents int64
	}

	// User is an account holder. Username is the primary key.
	User struct {
		Username     string
		PasswordHash string
	}

	// Transaction is a single recorded expense, either entered directly or
	// materialized from a RecurringExpense.
	Transaction struct {
		ID       int64
		Category string
		Amount   Money
		Date     Date
		Username string
	}

	// ExpenseLimit tracks a user's remaining salary and warning threshold.
	// At most one exists per user; SetExpenseLimit overwrites it unconditionally.
	ExpenseLimit struct {
		Username string
		Salary   Money
		Limit    Money
	}

	// RecurringExpense is a template that periodically materializes into
	// transactions until its end date. NextDue always sits between StartDate
	// and EndDate (when set); advancing past EndDate retires the record.
	RecurringExpense struct {
		ID        int64
		Username  string
		Category  string
		Amount    Money
		Frequency Frequency
		StartDate Date
		EndDate   Date // zero value means no end date
		NextDue   Date
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyCategory    = errors.New("empty category")
)

// ParseFrequency validates a frequency string against the supported enum.
// Matching is case-insensitive; the canonical lowercase form is returned.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Daily, Weekly, Monthly, Yearly:
		return f, nil
	default:
		return "", ErrInvalidFrequency
	}
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// YearMonth returns the YYYY-MM bucket used by the analytics aggregation.
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

// MarshalJSON renders the date as a quoted YYYY-MM-DD string, or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts null or a quoted YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > 100 {
		return errors.New("category too long (max 100 characters)")
	}
	if t.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if strings.TrimSpace(re.Category) == "" {
		return ErrEmptyCategory
	}
	if len(re.Category) > 100 {
		return errors.New("category too long (max 100 characters)")
	}
	if re.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if re.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if !re.EndDate.IsZero() && re.EndDate.Before(re.StartDate.Time) {
		return errors.New("end date must not be before start date")
	}
	if _, err := ParseFrequency(string(re.Frequency)); err != nil {
		return err
	}
	return nil
}
