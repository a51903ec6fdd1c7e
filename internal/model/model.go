package model

import (
	"slices"
	"time"
)

// DateLayout is the canonical textual form of a calendar date.
const DateLayout = "2006-01-02"

// EventType classifies an event for display (color legend etc.).
type EventType string

const (
	TypeWorkshop   EventType = "workshop"
	TypeConference EventType = "conference"
	TypeHackathon  EventType = "hackathon"
	TypeMeetup     EventType = "meetup"
	TypeRecurring  EventType = "recurring"
)

// EventTypes lists every known type in legend order.
var EventTypes = []EventType{TypeWorkshop, TypeConference, TypeHackathon, TypeMeetup, TypeRecurring}

// ParseEventType returns the EventType for s and whether it is known.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(s)
	return t, slices.Contains(EventTypes, t)
}

// Details carries the optional attributes shared by one-time events,
// recurring rules and their instances. Values are normalized once when the
// data source is decoded, so consumers use the Has* helpers instead of
// probing raw fields.
type Details struct {
	Location string
	// Organizers merges the single "organizer" and list "organizers" inputs.
	Organizers []string
	Sponsors   []string

	NeedsSponsors bool
	IsMajor       bool
	NewsWorthy    bool
}

func (d Details) HasLocation() bool   { return d.Location != "" }
func (d Details) HasOrganizers() bool { return len(d.Organizers) > 0 }
func (d Details) HasSponsors() bool   { return len(d.Sponsors) > 0 }

// clone returns a copy whose slices do not alias d.
func (d Details) clone() Details {
	d.Organizers = slices.Clone(d.Organizers)
	d.Sponsors = slices.Clone(d.Sponsors)
	return d
}

// EventDefinition is a one-time event as loaded from the data source.
type EventDefinition struct {
	ID          string
	Title       string
	Description string
	// Date is a civil date at midnight UTC.
	Date time.Time
	Type EventType
	Details
}

// Instance materializes the definition as an EventInstance.
func (e EventDefinition) Instance() EventInstance {
	return EventInstance{
		ID:          e.ID,
		SourceID:    e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Type:        e.Type,
		Details:     e.Details.clone(),
	}
}

// RecurringRule describes an event repeating monthly on the nth
// occurrence(s) of a weekday.
type RecurringRule struct {
	ID          string
	Title       string
	Description string
	DayOfWeek   time.Weekday
	// Occurrences holds 1-indexed ordinals, e.g. {2, 4} for the 2nd and
	// 4th weekday of the month. Order and duplicates are preserved.
	Occurrences []int
	Type        EventType
	Details
}

// InstanceID is the deterministic id of the rule's occurrence on date.
func (r RecurringRule) InstanceID(date time.Time) string {
	return r.ID + "-" + date.Format(DateLayout)
}

// Instance materializes the rule on a resolved date.
func (r RecurringRule) Instance(date time.Time) EventInstance {
	return EventInstance{
		ID:          r.InstanceID(date),
		SourceID:    r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        date,
		Type:        r.Type,
		Recurring:   true,
		Details:     r.Details.clone(),
	}
}

// EventInstance is a concrete, dated event: either a one-time event or one
// expansion of a recurring rule.
type EventInstance struct {
	// ID is unique per instance. For recurring instances it is derived
	// from the rule id and the resolved date.
	ID string
	// SourceID is the id of the definition or rule this came from.
	SourceID string

	Title       string
	Description string
	Date        time.Time
	Type        EventType
	Recurring   bool
	Details
}

// Calendar is one decoded data source snapshot.
type Calendar struct {
	Recurring []RecurringRule
	OneTime   []EventDefinition

	// Fingerprint identifies the content (hash of the raw payload) and is
	// used as the memoization key for derived instances.
	Fingerprint string
	// Origin is the candidate source the data was loaded from.
	Origin   string
	LoadedAt time.Time
}

// Date returns the civil date y-m-d at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
