package calendar

import (
	"slices"
	"time"

	"techcal/internal/model"
)

// EventsForMonth returns the one-time and recurring instances dated in
// monthIndex (0 = January), sorted by date. Sorting is stable, so on equal
// dates one-time events come before recurring ones. Neither input is
// modified.
func EventsForMonth(monthIndex int, oneTime, recurring []model.EventInstance) []model.EventInstance {
	month := time.Month(monthIndex + 1)
	out := make([]model.EventInstance, 0)
	for _, ev := range oneTime {
		if ev.Date.Month() == month {
			out = append(out, ev)
		}
	}
	for _, ev := range recurring {
		if ev.Date.Month() == month {
			out = append(out, ev)
		}
	}
	sortByDate(out)
	return out
}

// AllEvents returns every instance, one-time first, stably sorted by date.
func AllEvents(oneTime, recurring []model.EventInstance) []model.EventInstance {
	out := make([]model.EventInstance, 0, len(oneTime)+len(recurring))
	out = append(out, oneTime...)
	out = append(out, recurring...)
	sortByDate(out)
	return out
}

// OneTimeInstances materializes one-time definitions dated in year.
func OneTimeInstances(defs []model.EventDefinition, year int) []model.EventInstance {
	out := make([]model.EventInstance, 0, len(defs))
	for _, d := range defs {
		if d.Date.Year() != year {
			continue
		}
		out = append(out, d.Instance())
	}
	return out
}

func sortByDate(evs []model.EventInstance) {
	slices.SortStableFunc(evs, func(a, b model.EventInstance) int {
		return a.Date.Compare(b.Date)
	})
}

// MonthName returns the English name of monthIndex (0 = January).
func MonthName(monthIndex int) string {
	return time.Month(monthIndex + 1).String()
}
