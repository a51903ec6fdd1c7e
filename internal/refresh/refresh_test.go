package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"techcal/internal/calendar"
	"techcal/internal/model"
)

type stubLoader struct {
	data  *model.Calendar
	err   error
	calls int
}

func (s *stubLoader) Load(context.Context) (*model.Calendar, error) {
	s.calls++
	return s.data, s.err
}

func TestRefreshOnce(t *testing.T) {
	svc := calendar.NewService(2025)
	loader := &stubLoader{data: &model.Calendar{
		Recurring:   []model.RecurringRule{{ID: "r", DayOfWeek: time.Monday, Occurrences: []int{1}}},
		Fingerprint: "a",
	}}
	r := New(loader, svc, "@hourly")

	if err := r.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(svc.All()); got != 12 {
		t.Fatalf("instances = %d, want 12", got)
	}

	loader.err = errors.New("offline")
	loader.data = nil
	if err := r.RefreshOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := len(svc.All()); got != 12 {
		t.Fatalf("previous data lost after failure: %d", got)
	}
	if svc.Status().LastError == "" {
		t.Fatal("failure not recorded")
	}
}

func TestRunRejectsBadSpec(t *testing.T) {
	r := New(&stubLoader{}, calendar.NewService(2025), "not a cron spec")
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if err := New(&stubLoader{}, calendar.NewService(2025), "").Run(context.Background()); err == nil {
		t.Fatal("expected error for empty spec")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(&stubLoader{data: &model.Calendar{}}, calendar.NewService(2025), "@every 1h")

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
