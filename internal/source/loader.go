package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "techcal/internal/log"
	"techcal/internal/model"
)

// ErrNoSource is returned when no candidate produced usable data.
var ErrNoSource = errors.New("no calendar source could be loaded")

// Loader tries an ordered list of candidate sources and keeps the first
// one that both fetches and decodes.
type Loader struct {
	Candidates []string
	Fetcher    *Fetcher
}

// NewLoader returns a Loader over candidates, caching HTTP payloads under
// cacheDir.
func NewLoader(candidates []string, cacheDir string) *Loader {
	return &Loader{
		Candidates: candidates,
		Fetcher:    NewFetcher(cacheDir),
	}
}

// Load returns the calendar of the first successful candidate. Entry-level
// validation problems are logged and do not fail the candidate.
func (l *Loader) Load(ctx context.Context) (*model.Calendar, error) {
	if len(l.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates configured", ErrNoSource)
	}

	errs := make([]error, 0, len(l.Candidates))
	for _, candidate := range l.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := l.Fetcher.Fetch(ctx, candidate)
		if err != nil {
			appLog.Debug("source candidate failed", "candidate", displayName(candidate), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", displayName(candidate), err))
			continue
		}

		cal, warnings, err := Decode(res.Body)
		if err != nil {
			appLog.Error("source candidate not decodable", err, "candidate", displayName(candidate))
			errs = append(errs, fmt.Errorf("%s: %w", displayName(candidate), err))
			continue
		}
		for _, w := range warnings {
			appLog.Warn("skipping invalid event entry", "candidate", displayName(candidate), "reason", w.Error())
		}

		cal.Origin = displayName(res.Origin)
		cal.LoadedAt = time.Now()

		appLog.Info("calendar source loaded",
			"candidate", cal.Origin,
			"from_cache", res.FromCache,
			"recurring", len(cal.Recurring),
			"one_time", len(cal.OneTime),
			"skipped", len(warnings),
		)
		return cal, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrNoSource, errors.Join(errs...))
}

func displayName(candidate string) string {
	if isURL(candidate) {
		return redactURL(candidate)
	}
	return candidate
}
