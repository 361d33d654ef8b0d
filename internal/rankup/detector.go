// Package rankup detects rank boundary crossings between evaluations.
package rankup

import (
	"context"
	"fmt"
	"sync"

	"github.com/crescendoapp/crescendo/internal/service"
)

// Observation is the outcome of feeding one resolved rank level to the
// detector. Fired is true only when a rank-up boundary was crossed.
type Observation struct {
	PreviousLevel int
	NewLevel      int
	Fired         bool
}

// Detector compares each freshly resolved rank level against the previously
// observed one for a subject. State is held in an injected store keyed by
// (tenant, user) so detection survives restarts and supports concurrent use
// across subjects.
type Detector struct {
	states service.StateStore
	locks  map[string]*sync.Mutex
	mu     sync.Mutex
}

// NewDetector creates a detector backed by the given state store.
func NewDetector(states service.StateStore) *Detector {
	return &Detector{
		states: states,
		locks:  make(map[string]*sync.Mutex),
	}
}

// subjectLock returns the mutex serializing evaluations for one subject.
// Distinct subjects never contend with each other.
func (d *Detector) subjectLock(tenantID, userID string) *sync.Mutex {
	key := tenantID + "\x00" + userID
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[key] = lock
	}
	return lock
}

// Observe records a freshly resolved level. A transition fires only when
// resolvedLevel > previousLevel && previousLevel > 0: the first observation
// for a subject seeds the state without firing, preventing a spurious rank
// up on cold start. The previous level is unconditionally updated afterwards
// so the state machine tracks the latest observation.
func (d *Detector) Observe(ctx context.Context, tenantID, userID string, resolvedLevel int) (Observation, error) {
	lock := d.subjectLock(tenantID, userID)
	lock.Lock()
	defer lock.Unlock()

	previous, err := d.states.GetPreviousLevel(ctx, tenantID, userID)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to load previous level: %w", err)
	}

	obs := Observation{
		PreviousLevel: previous,
		NewLevel:      resolvedLevel,
		Fired:         previous > 0 && resolvedLevel > previous,
	}

	if err := d.states.SetPreviousLevel(ctx, tenantID, userID, resolvedLevel); err != nil {
		return Observation{}, fmt.Errorf("failed to store observed level: %w", err)
	}

	return obs, nil
}
