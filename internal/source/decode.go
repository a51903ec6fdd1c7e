package source

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"techcal/internal/model"
)

// rawDocument mirrors the events.json layout. Every field is optional on
// the wire; Decode turns it into the validated model types.
type rawDocument struct {
	Recurring []rawEvent `json:"recurring"`
	OneTime   []rawEvent `json:"oneTime"`
}

type rawEvent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	DayOfWeek   *int     `json:"dayOfWeek"`
	Occurrences []int    `json:"occurrences"`
	Type        string   `json:"type"`
	Location    string   `json:"location"`
	Organizer   string   `json:"organizer"`
	Organizers  []string `json:"organizers"`
	Sponsors    []string `json:"sponsors"`

	NeedsSponsors bool `json:"needsSponsors"`
	IsMajor       bool `json:"isMajor"`
	NewsWorthy    bool `json:"newsWorthy"`
}

// Decode parses an events.json payload. A document that is not valid JSON
// is an error. Missing collections decode as empty, and individual entries
// that fail validation are skipped and reported in warnings.
func Decode(body []byte) (*model.Calendar, []error, error) {
	var doc rawDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode events: %w", err)
	}

	sum := sha256.Sum256(body)
	cal := &model.Calendar{
		Recurring:   make([]model.RecurringRule, 0, len(doc.Recurring)),
		OneTime:     make([]model.EventDefinition, 0, len(doc.OneTime)),
		Fingerprint: hex.EncodeToString(sum[:]),
	}
	var warnings []error

	for i, raw := range doc.Recurring {
		r, err := raw.rule()
		if err != nil {
			warnings = append(warnings, fmt.Errorf("recurring[%d] %q: %w", i, raw.ID, err))
			continue
		}
		cal.Recurring = append(cal.Recurring, r)
	}
	for i, raw := range doc.OneTime {
		d, err := raw.definition()
		if err != nil {
			warnings = append(warnings, fmt.Errorf("oneTime[%d] %q: %w", i, raw.ID, err))
			continue
		}
		cal.OneTime = append(cal.OneTime, d)
	}

	return cal, warnings, nil
}

func (r rawEvent) common() (model.EventType, model.Details, error) {
	if strings.TrimSpace(r.ID) == "" {
		return "", model.Details{}, errors.New("missing id")
	}
	typ, ok := model.ParseEventType(strings.ToLower(strings.TrimSpace(r.Type)))
	if !ok {
		return "", model.Details{}, fmt.Errorf("unknown type %q", r.Type)
	}
	return typ, r.details(), nil
}

func (r rawEvent) details() model.Details {
	organizers := make([]string, 0, len(r.Organizers)+1)
	if o := strings.TrimSpace(r.Organizer); o != "" {
		organizers = append(organizers, o)
	}
	organizers = appendNonEmpty(organizers, r.Organizers)

	return model.Details{
		Location:      strings.TrimSpace(r.Location),
		Organizers:    nilIfEmpty(organizers),
		Sponsors:      nilIfEmpty(appendNonEmpty(nil, r.Sponsors)),
		NeedsSponsors: r.NeedsSponsors,
		IsMajor:       r.IsMajor,
		NewsWorthy:    r.NewsWorthy,
	}
}

func (r rawEvent) rule() (model.RecurringRule, error) {
	typ, details, err := r.common()
	if err != nil {
		return model.RecurringRule{}, err
	}
	if r.DayOfWeek == nil {
		return model.RecurringRule{}, errors.New("missing dayOfWeek")
	}
	if *r.DayOfWeek < 0 || *r.DayOfWeek > 6 {
		return model.RecurringRule{}, fmt.Errorf("dayOfWeek %d out of range 0-6", *r.DayOfWeek)
	}
	return model.RecurringRule{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		DayOfWeek:   time.Weekday(*r.DayOfWeek),
		Occurrences: append([]int(nil), r.Occurrences...),
		Type:        typ,
		Details:     details,
	}, nil
}

func (r rawEvent) definition() (model.EventDefinition, error) {
	typ, details, err := r.common()
	if err != nil {
		return model.EventDefinition{}, err
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return model.EventDefinition{}, err
	}
	return model.EventDefinition{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        date,
		Type:        typ,
		Details:     details,
	}, nil
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp and returns the
// calendar date (in the value's own offset) at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing date")
	}
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return model.Date(t.Year(), t.Month(), t.Day()), nil
}

func appendNonEmpty(dst, src []string) []string {
	for _, s := range src {
		if s = strings.TrimSpace(s); s != "" {
			dst = append(dst, s)
		}
	}
	return dst
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
