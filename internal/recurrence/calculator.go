// Package recurrence computes due dates for recurring maintenance schedules.
//
// All dates are civil dates: the time-of-day is discarded and the value is
// pinned to midnight UTC so that day arithmetic is never skewed by DST.
package recurrence

import (
	"time"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

// DateLayout is the ISO day format used on the wire and in dedup keys.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the start of the current day in loc as a civil date.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// AddDays offsets a civil date by n days.
func AddDays(d time.Time, n int) time.Time {
	return DateOf(d).AddDate(0, 0, n)
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return DateOf(d).Format(DateLayout)
}

// NextDue returns the earliest occurrence start + k*interval (k >= 0) that is on or
// after reference. A start date after reference is returned unchanged. Unknown
// units are treated as monthly.
func NextDue(start time.Time, unit domain.FrequencyUnit, value int, reference time.Time) time.Time {
	start = DateOf(start)
	ref := DateOf(reference)
	if value < 1 {
		value = 1
	}
	if start.After(ref) {
		return start
	}

	switch unit {
	case domain.FrequencyDaily:
		return stepDays(start, ref, value)
	case domain.FrequencyWeekly:
		return stepDays(start, ref, 7*value)
	case domain.FrequencyQuarterly:
		return stepMonths(start, ref, 3*value)
	case domain.FrequencyYearly:
		return stepMonths(start, ref, 12*value)
	default:
		return stepMonths(start, ref, value)
	}
}

func stepDays(start, ref time.Time, interval int) time.Time {
	// Both are UTC midnights; Duration saturates past ~292 years.
	days := int((ref.Unix() - start.Unix()) / 86400)
	k := days / interval
	if days%interval != 0 {
		k++
	}
	return start.AddDate(0, 0, k*interval)
}

// stepMonths relies on AddDate normalisation, so Jan 31 + 1 month is Mar 3 (or
// Mar 2 in leap years). Occurrences are always derived from start, never chained.
func stepMonths(start, ref time.Time, interval int) time.Time {
	months := (ref.Year()-start.Year())*12 + int(ref.Month()) - int(start.Month())
	k := months / interval
	if k < 0 {
		k = 0
	}
	// rollover can push an earlier occurrence past ref
	for k > 0 && !start.AddDate(0, (k-1)*interval, 0).Before(ref) {
		k--
	}
	next := start.AddDate(0, k*interval, 0)
	for next.Before(ref) {
		k++
		next = start.AddDate(0, k*interval, 0)
	}
	return next
}
