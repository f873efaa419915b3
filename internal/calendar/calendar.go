// Package calendar answers workday questions for the collection cadence.
//
// Day counting is calendar-based (every day counts), but sends happen only
// Monday through Friday: a send whose ideal date lands on a weekend is
// deferred forward to the next Monday. National holidays are intentionally
// not considered.
package calendar

import (
	"errors"
	"time"
)

var ErrInvalidDate = errors.New("calendar: invalid date")

// SendDate is the outcome of resolving a cadence offset against a due date.
type SendDate struct {
	Ideal        time.Time
	Actual       time.Time
	Deferred     bool
	DeferralDays int
}

// IsWorkday reports whether t falls Monday through Friday.
func IsWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// MaxWeekendDeferral is the furthest NextWorkday can push a date: a
// Saturday ideal date lands on Monday, two calendar days later.
const MaxWeekendDeferral = 2

// NextWorkday returns t unchanged when it is already a workday, otherwise
// the next Monday. With only weekends excluded this advances at most twice.
func NextWorkday(t time.Time) time.Time {
	for !IsWorkday(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Truncate normalizes a timestamp to midnight in its own location, so day
// arithmetic never depends on the time of day a batch happens to run.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ResolveSendDate computes when a message with the given signed cadence
// offset should actually go out. The offset is "days after due date", so
// ideal = dueDate + offsetDays; a weekend ideal date defers to Monday.
func ResolveSendDate(dueDate time.Time, offsetDays int) (SendDate, error) {
	if dueDate.IsZero() {
		return SendDate{}, ErrInvalidDate
	}

	ideal := Truncate(dueDate).AddDate(0, 0, offsetDays)
	actual := NextWorkday(ideal)

	deferred := !actual.Equal(ideal)
	deferralDays := 0
	if deferred {
		deferralDays = daysBetween(ideal, actual)
	}

	return SendDate{
		Ideal:        ideal,
		Actual:       actual,
		Deferred:     deferred,
		DeferralDays: deferralDays,
	}, nil
}

// DaysUntil returns the whole calendar days from today until due. Negative
// once the due date has passed.
func DaysUntil(due, today time.Time) int {
	return daysBetween(today, due)
}

// daysBetween counts calendar days from one date to the next. Both ends
// are re-anchored to UTC midnight so the count never shifts by an hour of
// daylight saving in the input location.
func daysBetween(from, to time.Time) int {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
