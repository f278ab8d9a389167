// Package interval holds the pure overlap predicates the availability
// checks are built on. Time slots are half-open intervals; borrow-date
// ranges are inclusive on both ends.
package interval

import "time"

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) overlap. Touching boundaries (aEnd == bStart) do not
// count as an overlap, so back-to-back bookings are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// DateRangesIntersect reports whether the inclusive calendar-day ranges
// [aFrom, aTo] and [bFrom, bTo] share at least one day. A borrowing that
// returns on day N conflicts with one starting on day N — units are only
// back in the pool the following day.
func DateRangesIntersect(aFrom, aTo, bFrom, bTo time.Time) bool {
	aFrom, aTo = DayOf(aFrom), DayOf(aTo)
	bFrom, bTo = DayOf(bFrom), DayOf(bTo)
	return !aFrom.After(bTo) && !bFrom.After(aTo)
}

// DayOf truncates t to midnight UTC so timestamps compare as calendar days.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day (UTC).
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}
