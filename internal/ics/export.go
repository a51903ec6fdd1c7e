// Package ics exports the calendar as iCalendar (RFC 5545) data so that
// events can be added to external calendar applications.
package ics

import (
	"errors"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"techcal/internal/calendar"
	appLog "techcal/internal/log"
	"techcal/internal/model"
)

// Custom properties carrying attributes iCalendar has no field for.
const (
	propertySponsors      = ical.ComponentProperty("X-TECHCAL-SPONSORS")
	propertyNeedsSponsors = ical.ComponentProperty("X-TECHCAL-NEEDS-SPONSORS")
	propertyNewsWorthy    = ical.ComponentProperty("X-TECHCAL-NEWSWORTHY")
)

// ExportOptions controls calendar-level metadata of an export.
type ExportOptions struct {
	// Name is the calendar display name (NAME / X-WR-CALNAME).
	Name string
	// Domain is appended to event ids to form globally unique UIDs.
	Domain string
	// Now is used as DTSTAMP. If zero, the current time is used.
	Now time.Time
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.Name == "" {
		o.Name = "Tech Community Calendar"
	}
	if o.Domain == "" {
		o.Domain = "techcal.local"
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC()
	return o
}

// rruleWeekdays maps time.Weekday (Sunday = 0) to rrule weekdays.
var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRuleFor describes rule's occurrences in year as a monthly RRULE with a
// COUNT bound, anchored on the rule's first instance. It reports false
// when the rule has no instance in year.
func RRuleFor(rule model.RecurringRule, year int) (rrule.ROption, bool) {
	dates := distinctDates(calendar.Expand(rule, year))
	if len(dates) == 0 {
		return rrule.ROption{}, false
	}

	ordinals := make([]int, 0, len(rule.Occurrences))
	for _, n := range rule.Occurrences {
		// Only 1..5 can resolve inside a month.
		if n >= 1 && n <= 5 && !slices.Contains(ordinals, n) {
			ordinals = append(ordinals, n)
		}
	}
	slices.Sort(ordinals)

	byday := make([]rrule.Weekday, 0, len(ordinals))
	for _, n := range ordinals {
		byday = append(byday, rruleWeekdays[rule.DayOfWeek].Nth(n))
	}

	return rrule.ROption{
		Freq:      rrule.MONTHLY,
		Dtstart:   dates[0],
		Count:     len(dates),
		Byweekday: byday,
	}, true
}

// distinctDates returns the sorted, de-duplicated dates of evs.
func distinctDates(evs []model.EventInstance) []time.Time {
	out := make([]time.Time, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Date)
	}
	slices.SortFunc(out, time.Time.Compare)
	return slices.CompactFunc(out, time.Time.Equal)
}

// Build assembles the VCALENDAR for year: one all-day VEVENT per one-time
// event dated in year and one RRULE-bearing VEVENT per recurring rule.
func Build(data *model.Calendar, year int, opts ExportOptions) (*ical.Calendar, error) {
	if data == nil {
		return nil, errors.New("ics: no calendar data")
	}
	opts = opts.withDefaults()
	cal := newCalendar(opts)

	for _, ev := range calendar.OneTimeInstances(data.OneTime, year) {
		addInstance(cal, ev, opts)
	}

	for _, rule := range data.Recurring {
		opt, ok := RRuleFor(rule, year)
		if !ok {
			appLog.Debug("ics export: rule has no instances", "rule", rule.ID, "year", year)
			continue
		}
		first := rule.Instance(opt.Dtstart)
		first.ID = rule.ID
		ve := addInstance(cal, first, opts)
		ve.AddProperty(ical.ComponentPropertyRrule, opt.RRuleString())
	}

	return cal, nil
}

// Export renders Build's result as text/calendar.
func Export(data *model.Calendar, year int, opts ExportOptions) (string, error) {
	cal, err := Build(data, year, opts)
	if err != nil {
		return "", err
	}
	return cal.Serialize(), nil
}

// EventICS renders a single instance as a one-event calendar, for "add to
// calendar" links.
func EventICS(ev model.EventInstance, opts ExportOptions) string {
	opts = opts.withDefaults()
	cal := newCalendar(opts)
	addInstance(cal, ev, opts)
	return cal.Serialize()
}

func newCalendar(opts ExportOptions) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//techcal//" + opts.Name + "//EN")
	cal.SetName(opts.Name)
	cal.SetXWRCalName(opts.Name)
	return cal
}

func addInstance(cal *ical.Calendar, ev model.EventInstance, opts ExportOptions) *ical.VEvent {
	ve := cal.AddEvent(ev.ID + "@" + opts.Domain)
	ve.SetDtStampTime(opts.Now)
	ve.SetAllDayStartAt(ev.Date)
	ve.SetAllDayEndAt(ev.Date.AddDate(0, 0, 1))
	ve.SetSummary(ev.Title)
	if desc := description(ev); desc != "" {
		ve.SetDescription(desc)
	}
	if ev.HasLocation() {
		ve.SetLocation(ev.Location)
	}
	if ev.Type != "" {
		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(ev.Type)))
	}
	if ev.IsMajor {
		ve.SetProperty(ical.ComponentPropertyPriority, "1")
	}
	if ev.HasSponsors() {
		ve.SetProperty(propertySponsors, strings.Join(ev.Sponsors, "; "))
	}
	if ev.NeedsSponsors {
		ve.SetProperty(propertyNeedsSponsors, "TRUE")
	}
	if ev.NewsWorthy {
		ve.SetProperty(propertyNewsWorthy, "TRUE")
	}
	return ve
}

func description(ev model.EventInstance) string {
	lines := make([]string, 0, 3)
	if ev.Description != "" {
		lines = append(lines, ev.Description)
	}
	switch len(ev.Organizers) {
	case 0:
	case 1:
		lines = append(lines, "Organizer: "+ev.Organizers[0])
	default:
		lines = append(lines, "Organizers: "+strings.Join(ev.Organizers, ", "))
	}
	if ev.HasSponsors() {
		lines = append(lines, "Sponsors: "+strings.Join(ev.Sponsors, ", "))
	}
	return strings.Join(lines, "\n")
}
