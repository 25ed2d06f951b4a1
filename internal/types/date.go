package types

import (
	"time"
)

// NextBillingPeriod advances a billing period start by one month, clamping
// to the last valid day of the target month (Jan 31 -> Feb 28/29). All
// subscriptions bill monthly; this leverages calendar-aware date math
// rather than a fixed 30 day hop.
func NextBillingPeriod(start time.Time) time.Time {
	return AddClampedDate(start, 0, 1, 0)
}

// AddClampedDate adds years/months/days to t, clamping the day of month to
// the last valid day of the resulting month instead of letting time.AddDate
// overflow into the following month.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d + days
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// DaysInMonth returns the number of calendar days in the month containing t.
func DaysInMonth(t time.Time) int {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// BeginningOfDay truncates t to midnight UTC. Invoice uniqueness per
// billing date is evaluated at day granularity.
func BeginningOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
