package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"techcal/internal/model"
)

func sampleCalendar() *model.Calendar {
	return &model.Calendar{
		Recurring: []model.RecurringRule{rule("meetup", time.Tuesday, 3)},
		OneTime: []model.EventDefinition{
			{ID: "conf", Date: model.Date(2025, time.January, 21), Type: model.TypeConference,
				Details: model.Details{Sponsors: []string{"Acme"}}},
			{ID: "last-year", Date: model.Date(2024, time.January, 9), Type: model.TypeWorkshop},
		},
		Fingerprint: "fp-1",
		Origin:      "test",
	}
}

func TestDeriverMemoizes(t *testing.T) {
	var d Deriver
	cal := sampleCalendar()

	a := d.Instances(cal, 2025)
	b := d.Instances(cal, 2025)
	if d.computations != 1 {
		t.Fatalf("computations = %d, want 1", d.computations)
	}
	if len(a) != 12 || len(b) != 12 {
		t.Fatalf("len = %d/%d", len(a), len(b))
	}

	d.Instances(cal, 2026)
	if d.computations != 2 {
		t.Fatalf("year change did not recompute: %d", d.computations)
	}

	changed := *cal
	changed.Fingerprint = "fp-2"
	changed.Recurring = append(changed.Recurring, rule("extra", time.Friday, 1))
	if got := d.Instances(&changed, 2026); len(got) != 24 {
		t.Fatalf("fingerprint change: len = %d, want 24", len(got))
	}
	if d.computations != 3 {
		t.Fatalf("fingerprint change did not recompute: %d", d.computations)
	}

	if d.Instances(nil, 2025) != nil {
		t.Fatal("nil calendar should derive nothing")
	}
}

func TestDeriverWithoutFingerprintAlwaysRecomputes(t *testing.T) {
	var d Deriver
	cal := sampleCalendar()
	cal.Fingerprint = ""
	d.Instances(cal, 2025)
	d.Instances(cal, 2025)
	if d.computations != 2 {
		t.Fatalf("computations = %d, want 2", d.computations)
	}
}

func TestServiceEmpty(t *testing.T) {
	s := NewService(2025)
	months := s.Months()
	if len(months) != 12 {
		t.Fatalf("months = %d", len(months))
	}
	for _, m := range months {
		if len(m.Events) != 0 {
			t.Fatalf("%s has events without data", m.Name)
		}
	}
	if len(s.All()) != 0 || len(s.Sponsors()) != 0 {
		t.Fatal("empty service produced events")
	}
	if st := s.Status(); st.Loaded || st.LastError != "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestServiceViews(t *testing.T) {
	s := NewService(2025)
	s.Replace(sampleCalendar())

	jan, err := s.Month(0)
	if err != nil {
		t.Fatal(err)
	}
	if jan.Name != "January" || len(jan.Events) != 2 {
		t.Fatalf("january = %+v", jan)
	}
	if jan.Events[0].ID != "conf" || jan.Events[1].ID != "meetup-2025-01-21" {
		t.Fatalf("one-time event should precede recurring on the same date: %s, %s", jan.Events[0].ID, jan.Events[1].ID)
	}

	if all := s.All(); len(all) != 13 {
		t.Fatalf("all = %d, want 13 (last-year excluded)", len(all))
	}

	groups := s.Sponsors()
	if len(groups) != 1 || groups[0].Name != "Acme" {
		t.Fatalf("sponsors = %+v", groups)
	}

	st := s.Status()
	if !st.Loaded || st.Instances != 13 || st.OneTimeEvents != 1 || st.RecurringRules != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestServiceMonthOutOfRange(t *testing.T) {
	s := NewService(2025)
	for _, m := range []int{-1, 12} {
		if _, err := s.Month(m); !errors.Is(err, ErrMonthOutOfRange) {
			t.Fatalf("Month(%d) err = %v", m, err)
		}
	}
}

func TestServiceFailKeepsData(t *testing.T) {
	s := NewService(2025)
	s.Replace(sampleCalendar())
	s.Fail(errors.New("network down"))

	st := s.Status()
	if !st.Loaded {
		t.Fatal("data dropped after failure")
	}
	if !strings.HasPrefix(st.LastError, LoadFailedMessage) || !strings.Contains(st.LastError, "network down") {
		t.Fatalf("last error = %q", st.LastError)
	}
	if len(s.All()) == 0 {
		t.Fatal("views empty after failure")
	}

	s.Replace(sampleCalendar())
	if s.Status().LastError != "" {
		t.Fatal("successful replace should clear the error")
	}
}
