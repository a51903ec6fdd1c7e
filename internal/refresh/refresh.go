// Package refresh keeps the calendar service in sync with its data
// sources, once at startup and then on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"techcal/internal/calendar"
	appLog "techcal/internal/log"
	"techcal/internal/model"
)

// Loader produces a freshly loaded calendar.
type Loader interface {
	Load(ctx context.Context) (*model.Calendar, error)
}

// Refresher reloads data from a Loader into a calendar.Service.
type Refresher struct {
	loader Loader
	svc    *calendar.Service
	spec   string

	// mu serializes reloads triggered by cron and by the API.
	mu sync.Mutex
}

// New returns a Refresher; spec is a standard 5-field cron expression.
func New(loader Loader, svc *calendar.Service, spec string) *Refresher {
	return &Refresher{loader: loader, svc: svc, spec: spec}
}

// RefreshOnce loads the sources and installs the result. On failure the
// previous data stays in place and the error is recorded on the service.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.loader.Load(ctx)
	if err != nil {
		r.svc.Fail(err)
		appLog.Error("calendar refresh failed", err)
		return err
	}
	r.svc.Replace(data)
	return nil
}

// Run schedules RefreshOnce on the cron spec until ctx is done. It does
// not perform an initial load.
func (r *Refresher) Run(ctx context.Context) error {
	if r.spec == "" {
		return errors.New("refresh: empty cron spec")
	}

	c := cron.New()
	_, err := c.AddFunc(r.spec, func() {
		// Failures are logged and recorded on the service.
		_ = r.RefreshOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("refresh: invalid cron spec %q: %w", r.spec, err)
	}

	appLog.Info("refresh scheduler started", "cron", r.spec)
	c.Start()

	<-ctx.Done()

	// Wait for a running refresh to finish.
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
	return nil
}
