package calendar

import (
	"sync"

	"techcal/internal/model"
)

type deriveKey struct {
	fingerprint string
	year        int
}

// Deriver memoizes DeriveInstances by (calendar fingerprint, year). The
// expansion is recomputed only when either input changes.
type Deriver struct {
	mu        sync.Mutex
	key       deriveKey
	valid     bool
	instances []model.EventInstance

	// computations counts actual expansions; read by tests.
	computations int
}

// Instances returns the expanded recurring instances of cal for year. The
// returned slice is shared between callers and must not be modified.
func (d *Deriver) Instances(cal *model.Calendar, year int) []model.EventInstance {
	if cal == nil {
		return nil
	}

	key := deriveKey{fingerprint: cal.Fingerprint, year: year}

	d.mu.Lock()
	defer d.mu.Unlock()

	// An empty fingerprint carries no identity; always recompute.
	if d.valid && key.fingerprint != "" && d.key == key {
		return d.instances
	}

	d.instances = DeriveInstances(cal.Recurring, year)
	d.key = key
	d.valid = true
	d.computations++
	return d.instances
}
