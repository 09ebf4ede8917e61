package model

import (
	"errors"
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

var (
	ErrInvalidFrequency = errors.New("model: invalid recurrence frequency")
	ErrInvalidInterval  = errors.New("model: invalid recurrence interval")
)

// RecurrenceRule generates occurrence dates from a start date. The end
// condition is optional: EndDate bounds by date, Count bounds by number of
// occurrences, zero values mean unbounded.
type RecurrenceRule struct {
	Frequency Frequency
	Interval  int
	StartDate time.Time
	EndDate   *time.Time
	Count     int
}

func (r RecurrenceRule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, r.Interval)
	}
	if r.StartDate.IsZero() {
		return errors.New("model: recurrence start date is required")
	}
	if r.Count < 0 {
		return errors.New("model: recurrence count must not be negative")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return errors.New("model: recurrence end date precedes start date")
	}
	return nil
}

// OccurrenceAt returns the n-th occurrence (0-based) of the rule. Monthly
// and yearly steps that land past the end of a month are clamped to its
// last day, keyed off the start date so later occurrences do not drift.
func (r RecurrenceRule) OccurrenceAt(n int) time.Time {
	start := r.StartDate.UTC()
	switch r.Frequency {
	case FrequencyDaily:
		return start.AddDate(0, 0, n*r.Interval)
	case FrequencyWeekly:
		return start.AddDate(0, 0, n*r.Interval*7)
	case FrequencyMonthly:
		return addMonthsClamped(start, n*r.Interval)
	case FrequencyYearly:
		return addMonthsClamped(start, n*r.Interval*12)
	default:
		return start
	}
}

// Occurrences expands the rule into at most max occurrence dates, never
// past the until horizon or the rule's own end condition.
func (r RecurrenceRule) Occurrences(max int, until time.Time) []time.Time {
	out := make([]time.Time, 0, max)
	limit := max
	if r.Count > 0 && r.Count < limit {
		limit = r.Count
	}
	for n := 0; n < limit; n++ {
		occ := r.OccurrenceAt(n)
		if occ.After(until) {
			break
		}
		if r.EndDate != nil && occ.After(r.EndDate.UTC()) {
			break
		}
		out = append(out, occ)
	}
	return out
}

// NextAfter returns the first occurrence strictly after the given time,
// false when the rule is exhausted before reaching one.
func (r RecurrenceRule) NextAfter(after time.Time) (time.Time, bool) {
	for n := 0; ; n++ {
		if r.Count > 0 && n >= r.Count {
			return time.Time{}, false
		}
		occ := r.OccurrenceAt(n)
		if r.EndDate != nil && occ.After(r.EndDate.UTC()) {
			return time.Time{}, false
		}
		if occ.After(after) {
			return occ, true
		}
	}
}

func addMonthsClamped(start time.Time, months int) time.Time {
	y, m, d := start.Date()
	first := time.Date(y, m, 1, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	shifted := first.AddDate(0, months, 0)
	last := daysInMonth(shifted.Year(), shifted.Month())
	if d > last {
		d = last
	}
	return time.Date(shifted.Year(), shifted.Month(), d, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
}

func daysInMonth(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
