package calendar

import (
	"time"

	"techcal/internal/model"
)

// NthWeekday returns the date of the nth occurrence (1-indexed) of weekday
// in the given month, and false if that occurrence does not exist (for
// example a 5th Monday in a month with only four).
func NthWeekday(year int, month time.Month, weekday time.Weekday, n int) (time.Time, bool) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return time.Time{}, false
	}

	first := model.Date(year, month, 1)
	for first.Weekday() != weekday {
		first = first.AddDate(0, 0, 1)
	}

	target := first.AddDate(0, 0, (n-1)*7)
	if target.Year() != year || target.Month() != month {
		return time.Time{}, false
	}
	return target, true
}

// Expand materializes rule for every month of year. Output is ordered by
// month, then by the rule's occurrence list as given; it is not sorted by
// date when occurrences are out of order.
func Expand(rule model.RecurringRule, year int) []model.EventInstance {
	out := make([]model.EventInstance, 0, 12*len(rule.Occurrences))
	for month := time.January; month <= time.December; month++ {
		for _, n := range rule.Occurrences {
			date, ok := NthWeekday(year, month, rule.DayOfWeek, n)
			if !ok {
				continue
			}
			out = append(out, rule.Instance(date))
		}
	}
	return out
}

// DeriveInstances expands every rule for year, in rule order.
func DeriveInstances(rules []model.RecurringRule, year int) []model.EventInstance {
	out := make([]model.EventInstance, 0)
	for _, r := range rules {
		out = append(out, Expand(r, year)...)
	}
	return out
}
