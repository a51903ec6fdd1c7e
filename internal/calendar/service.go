package calendar

import (
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "techcal/internal/log"
	"techcal/internal/model"
)

// ErrMonthOutOfRange is returned for month indexes outside 0..11.
var ErrMonthOutOfRange = errors.New("month index out of range")

// LoadFailedMessage is shown when no calendar data could be loaded.
const LoadFailedMessage = "Failed to load calendar data"

// MonthView is the aggregated event list of one month.
type MonthView struct {
	Index  int
	Name   string
	Events []model.EventInstance
}

// Status describes what the service currently holds.
type Status struct {
	Year           int
	Loaded         bool
	Origin         string
	Fingerprint    string
	LoadedAt       time.Time
	RecurringRules int
	OneTimeEvents  int
	Instances      int
	// LastError is the most recent load failure, empty after a success.
	LastError string
}

// Service holds the current calendar data for a single year and serves the
// derived views. It is safe for concurrent use; data is swapped wholesale
// by Replace and never mutated in place.
type Service struct {
	year int

	mu      sync.RWMutex
	data    *model.Calendar
	lastErr error

	deriver Deriver
}

// NewService returns an empty service for year.
func NewService(year int) *Service {
	return &Service{year: year}
}

func (s *Service) Year() int { return s.year }

// Replace installs freshly loaded data and clears the last error.
func (s *Service) Replace(data *model.Calendar) {
	if data == nil {
		data = &model.Calendar{}
	}
	s.mu.Lock()
	s.data = data
	s.lastErr = nil
	s.mu.Unlock()

	appLog.Info("calendar data replaced",
		"origin", data.Origin,
		"recurring", len(data.Recurring),
		"one_time", len(data.OneTime),
		"year", s.year,
	)
}

// Fail records a load failure. Previously loaded data stays in place.
func (s *Service) Fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Snapshot returns the current data (possibly nil) and the service year.
func (s *Service) Snapshot() (*model.Calendar, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.year
}

// instances returns the in-year one-time and recurring instances.
func (s *Service) instances() (oneTime, recurring []model.EventInstance) {
	data, year := s.Snapshot()
	if data == nil {
		return nil, nil
	}
	return OneTimeInstances(data.OneTime, year), s.deriver.Instances(data, year)
}

// Month returns the events of monthIndex (0 = January).
func (s *Service) Month(monthIndex int) (MonthView, error) {
	if monthIndex < 0 || monthIndex > 11 {
		return MonthView{}, fmt.Errorf("%w: %d", ErrMonthOutOfRange, monthIndex)
	}
	oneTime, recurring := s.instances()
	return MonthView{
		Index:  monthIndex,
		Name:   MonthName(monthIndex),
		Events: EventsForMonth(monthIndex, oneTime, recurring),
	}, nil
}

// Months returns all twelve month views.
func (s *Service) Months() []MonthView {
	oneTime, recurring := s.instances()
	out := make([]MonthView, 12)
	for i := range out {
		out[i] = MonthView{
			Index:  i,
			Name:   MonthName(i),
			Events: EventsForMonth(i, oneTime, recurring),
		}
	}
	return out
}

// All returns every instance of the year in date order.
func (s *Service) All() []model.EventInstance {
	oneTime, recurring := s.instances()
	return AllEvents(oneTime, recurring)
}

// Sponsors groups the year's instances by sponsor.
func (s *Service) Sponsors() []SponsorGroup {
	return GroupBySponsor(s.All())
}

// NeedingSponsors lists the year's instances looking for sponsors.
func (s *Service) NeedingSponsors() []model.EventInstance {
	return NeedingSponsors(s.All())
}

func (s *Service) Status() Status {
	s.mu.RLock()
	data, lastErr := s.data, s.lastErr
	s.mu.RUnlock()

	st := Status{Year: s.year}
	if lastErr != nil {
		st.LastError = LoadFailedMessage + ": " + lastErr.Error()
	}
	if data == nil {
		return st
	}

	oneTime, recurring := s.instances()
	st.Loaded = true
	st.Origin = data.Origin
	st.Fingerprint = data.Fingerprint
	st.LoadedAt = data.LoadedAt
	st.RecurringRules = len(data.Recurring)
	st.OneTimeEvents = len(oneTime)
	st.Instances = len(oneTime) + len(recurring)
	return st
}
