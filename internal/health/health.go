// Package health tracks per-component liveness for the /healthz endpoint.
package health

import (
	"sync"
	"time"
)

// Status is the coarse health of one component.
type Status string

const (
	StatusUnknown   Status = "UNKNOWN"
	StatusHealthy   Status = "HEALTHY"
	StatusUnhealthy Status = "UNHEALTHY"

	// defaultUnhealthyThreshold is the number of consecutive failures
	// before a component is reported unhealthy.
	defaultUnhealthyThreshold = 5
)

// Tracker follows one component's success/failure history. A component is
// unhealthy after a run of consecutive failures and recovers on the first
// success.
type Tracker struct {
	mu                  sync.RWMutex
	component           string
	status              Status
	consecutiveFailures int
	unhealthyThreshold  int
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	now                 func() time.Time
}

// NewTracker builds a tracker in the UNKNOWN state.
func NewTracker(component string) *Tracker {
	return &Tracker{
		component:          component,
		status:             StatusUnknown,
		unhealthyThreshold: defaultUnhealthyThreshold,
		now:                time.Now,
	}
}

// RecordSuccess clears the failure run. Reports whether the component
// recovered from an unhealthy state on this call.
func (t *Tracker) RecordSuccess() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	recovered := t.status == StatusUnhealthy
	t.consecutiveFailures = 0
	t.lastSuccessAt = &now
	t.status = StatusHealthy
	return recovered
}

// RecordFailure extends the failure run. Reports whether the component
// transitioned to unhealthy on this call.
func (t *Tracker) RecordFailure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.consecutiveFailures++
	t.lastFailureAt = &now
	if t.consecutiveFailures >= t.unhealthyThreshold && t.status != StatusUnhealthy {
		t.status = StatusUnhealthy
		return true
	}
	return false
}

// Snapshot is a JSON-safe point-in-time view.
type Snapshot struct {
	Component           string     `json:"component"`
	Status              Status     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Component:           t.component,
		Status:              t.status,
		ConsecutiveFailures: t.consecutiveFailures,
		LastSuccessAt:       t.lastSuccessAt,
		LastFailureAt:       t.lastFailureAt,
	}
}

// Registry is a fixed set of trackers reported together on /healthz.
type Registry struct {
	mu       sync.RWMutex
	trackers []*Tracker
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a component and returns its tracker.
func (r *Registry) Register(component string) *Tracker {
	t := NewTracker(component)
	r.mu.Lock()
	r.trackers = append(r.trackers, t)
	r.mu.Unlock()
	return t
}

// Snapshots returns every component's current state.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t.Snapshot())
	}
	return out
}

// Healthy reports whether no registered component is unhealthy.
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.trackers {
		if t.Snapshot().Status == StatusUnhealthy {
			return false
		}
	}
	return true
}
