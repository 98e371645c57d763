package circulation

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus is derived from the return date and the due date relative to
// the current date. It is never stored, so it can not go stale.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusOverdue  LoanStatus = "overdue"
	LoanStatusReturned LoanStatus = "returned"
)

// Loan is the time-bounded borrowing relationship between exactly one patron
// and one item. ReturnedAt is nil until the loan is closed.
type Loan struct {
	ID         uuid.UUID
	PatronID   string
	ItemID     uuid.UUID
	IssuedAt   time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
}

// IsOpen reports whether the loan has not been returned yet.
func (l Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

// StatusAt derives the loan status relative to now: returned when the return
// date is set, otherwise active until the due date has passed, overdue after.
func (l Loan) StatusAt(now time.Time) LoanStatus {
	if l.ReturnedAt != nil {
		return LoanStatusReturned
	}

	if DateOnly(now).After(DateOnly(l.DueAt)) {
		return LoanStatusOverdue
	}

	return LoanStatusActive
}

// OverdueDaysAt derives the whole days elapsed past the due date, floored at
// zero. For an open loan the reference point is now, for a returned loan it
// is the return date.
func (l Loan) OverdueDaysAt(now time.Time) int {
	reference := now
	if l.ReturnedAt != nil {
		reference = *l.ReturnedAt
	}

	days := wholeDaysBetween(l.DueAt, reference)
	if days < 0 {
		return 0
	}

	return days
}

// DateOnly normalizes a point in time to its calendar date, midnight UTC.
// All circulation dates (issue, due, return) carry date precision.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// wholeDaysBetween returns the number of calendar days from a to b,
// negative when b lies before a.
func wholeDaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
