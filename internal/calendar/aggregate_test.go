package calendar

import (
	"testing"
	"time"

	"techcal/internal/model"
)

func oneTime(id string, date time.Time) model.EventInstance {
	return model.EventDefinition{ID: id, Title: id, Date: date, Type: model.TypeConference}.Instance()
}

func TestEventsForMonthMergesAndSorts(t *testing.T) {
	recurring := Expand(rule("meetup", time.Tuesday, 3), 2025)
	ot := []model.EventInstance{
		oneTime("late-jan", model.Date(2025, time.January, 30)),
		oneTime("tie", model.Date(2025, time.January, 21)),
		oneTime("early-jan", model.Date(2025, time.January, 2)),
		oneTime("march", model.Date(2025, time.March, 5)),
	}

	got := EventsForMonth(0, ot, recurring)
	ids := make([]string, len(got))
	for i, ev := range got {
		ids[i] = ev.ID
	}
	want := []string{"early-jan", "tie", "meetup-2025-01-21", "late-jan"}
	if !equalStrings(ids, want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
}

func TestEventsForMonthDoesNotMutateInputs(t *testing.T) {
	ot := []model.EventInstance{
		oneTime("b", model.Date(2025, time.May, 20)),
		oneTime("a", model.Date(2025, time.May, 1)),
	}
	_ = EventsForMonth(4, ot, nil)
	if ot[0].ID != "b" || ot[1].ID != "a" {
		t.Fatalf("input reordered: %s, %s", ot[0].ID, ot[1].ID)
	}
}

func TestEventsForMonthEmpty(t *testing.T) {
	for m := 0; m < 12; m++ {
		if got := EventsForMonth(m, nil, nil); len(got) != 0 {
			t.Fatalf("month %d: got %d events from empty input", m, len(got))
		}
	}
	if got := EventsForMonth(12, []model.EventInstance{oneTime("x", model.Date(2025, time.January, 1))}, nil); len(got) != 0 {
		t.Fatalf("out of range month matched %d events", len(got))
	}
}

func TestAggregationCoversEveryInstanceOnce(t *testing.T) {
	recurring := DeriveInstances([]model.RecurringRule{
		rule("first-mon", time.Monday, 1),
		rule("late-fri", time.Friday, 2, 5),
		rule("sat", time.Saturday, 4),
	}, 2025)
	ot := []model.EventInstance{
		oneTime("conf", model.Date(2025, time.June, 12)),
		oneTime("hack", model.Date(2025, time.October, 4)),
		oneTime("nye", model.Date(2025, time.December, 31)),
	}

	all := make(map[string]int)
	total := 0
	for m := 0; m < 12; m++ {
		evs := EventsForMonth(m, ot, recurring)
		for i, ev := range evs {
			all[ev.ID]++
			total++
			if int(ev.Date.Month())-1 != m {
				t.Fatalf("month %d contains %s", m, ev.Date)
			}
			if i > 0 && ev.Date.Before(evs[i-1].Date) {
				t.Fatalf("month %d not sorted at %d", m, i)
			}
		}
	}

	if total != len(ot)+len(recurring) {
		t.Fatalf("aggregated %d events, want %d", total, len(ot)+len(recurring))
	}
	for _, ev := range append(append([]model.EventInstance{}, ot...), recurring...) {
		if all[ev.ID] != 1 {
			t.Fatalf("%s seen %d times", ev.ID, all[ev.ID])
		}
	}
}

func TestAllEventsStableOrder(t *testing.T) {
	d := model.Date(2025, time.July, 15)
	recurring := []model.EventInstance{model.RecurringRule{ID: "r"}.Instance(d)}
	ot := []model.EventInstance{
		oneTime("later", model.Date(2025, time.August, 1)),
		oneTime("same-day", d),
	}
	got := AllEvents(ot, recurring)
	if got[0].ID != "same-day" || got[1].ID != "r-2025-07-15" || got[2].ID != "later" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestOneTimeInstancesFiltersYear(t *testing.T) {
	defs := []model.EventDefinition{
		{ID: "old", Date: model.Date(2024, time.December, 31)},
		{ID: "in", Date: model.Date(2025, time.January, 1)},
		{ID: "next", Date: model.Date(2026, time.January, 1)},
	}
	got := OneTimeInstances(defs, 2025)
	if len(got) != 1 || got[0].ID != "in" || got[0].Recurring {
		t.Fatalf("got %+v", got)
	}
}

func TestMonthName(t *testing.T) {
	if MonthName(0) != "January" || MonthName(11) != "December" {
		t.Fatalf("got %s / %s", MonthName(0), MonthName(11))
	}
}
