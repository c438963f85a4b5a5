package core

import "time"

// NextOccurrence advances a due date by one period of the given frequency.
//
// Daily and weekly periods are fixed day counts. Monthly and yearly advance by
// one calendar unit with the day clamped to the last day of the target month,
// so Jan 31 + monthly = Feb 28 (29 in leap years) rather than rolling over
// into March.
//
// The frequency is validated at creation time; an unrecognized value here
// returns the input unchanged and should never happen in practice.
func NextOccurrence(d Date, f Frequency) Date {
	switch f {
	case Daily:
		return Date{Time: d.AddDate(0, 0, 1)}
	case Weekly:
		return Date{Time: d.AddDate(0, 0, 7)}
	case Monthly:
		return addClamped(d, 0, 1)
	case Yearly:
		return addClamped(d, 1, 0)
	default:
		return d
	}
}

// Retires reports whether advancing to next would push the record past its
// end date. A zero end date means the record never retires.
func (re RecurringExpense) Retires(next Date) bool {
	return !re.EndDate.IsZero() && next.After(re.EndDate.Time)
}

// addClamped adds calendar years/months keeping the day of month, clamped to
// the last day of the target month.
func addClamped(d Date, years, months int) Date {
	y, m, day := d.Date()
	target := time.Date(y+years, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := target.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(target.Year(), int(target.Month()), day)
}
