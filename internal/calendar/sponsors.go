package calendar

import (
	"slices"
	"strings"

	"techcal/internal/model"
)

// SponsorGroup lists the events supported by one sponsor.
type SponsorGroup struct {
	Name   string
	Events []model.EventInstance
}

// GroupBySponsor groups instances by sponsor name. Groups are sorted
// alphabetically (case-insensitive) and each group's events by date.
// An event listing the same sponsor twice appears once in that group.
func GroupBySponsor(instances []model.EventInstance) []SponsorGroup {
	byName := make(map[string]*SponsorGroup)
	order := make([]string, 0)

	for _, ev := range instances {
		seen := make(map[string]bool, len(ev.Sponsors))
		for _, name := range ev.Sponsors {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			g, ok := byName[name]
			if !ok {
				g = &SponsorGroup{Name: name}
				byName[name] = g
				order = append(order, name)
			}
			g.Events = append(g.Events, ev)
		}
	}

	sortSponsorNames(order)

	out := make([]SponsorGroup, 0, len(order))
	for _, name := range order {
		g := byName[name]
		sortByDate(g.Events)
		out = append(out, *g)
	}
	return out
}

func sortSponsorNames(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

// NeedingSponsors returns the instances flagged as looking for sponsors,
// sorted by date.
func NeedingSponsors(instances []model.EventInstance) []model.EventInstance {
	out := make([]model.EventInstance, 0)
	for _, ev := range instances {
		if ev.NeedsSponsors {
			out = append(out, ev)
		}
	}
	sortByDate(out)
	return out
}
