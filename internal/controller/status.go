package controller

import (
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// StatusSnapshot is the compact intersection view served on /status.
type StatusSnapshot struct {
	Timestamp          time.Time                             `json:"timestamp"`
	Mode               model.ControllerMode                  `json:"mode"`
	Signals            map[model.Direction]model.SignalState `json:"signals"`
	CurrentGreen       model.Direction                       `json:"current_green,omitempty"`
	Vehicles           map[model.Direction]int               `json:"vehicles"`
	EmergencyActive    bool                                  `json:"emergency_active"`
	EmergencyDirection model.Direction                       `json:"emergency_direction,omitempty"`
	PedestrianPending  map[model.Direction]bool              `json:"pedestrian_pending"`
}

// DirectionDetail is the per-approach block of the detailed status.
type DirectionDetail struct {
	Vehicles          int               `json:"vehicles"`
	WaitSeconds       float64           `json:"wait_seconds"`
	WaitingCycles     int               `json:"waiting_cycles"`
	ArrivalRate       float64           `json:"arrival_rate"`
	Signal            model.SignalState `json:"signal"`
	PedestrianPending bool              `json:"pedestrian_pending"`
	PedestrianWait    float64           `json:"pedestrian_wait_seconds"`
	PedestriansServed int64             `json:"pedestrians_served"`
	CooldownRemaining float64           `json:"pedestrian_cooldown_remaining"`
}

// DetailedSnapshot adds scheduler internals to the compact status.
type DetailedSnapshot struct {
	StatusSnapshot
	Directions map[model.Direction]DirectionDetail `json:"directions"`
	Settings   Settings                            `json:"settings"`
	Stats      StatsSnapshot                       `json:"stats"`
	EventCount int                                 `json:"event_count"`
}

// Status returns the compact intersection view.
func (c *Controller) Status() StatusSnapshot {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(now)
}

func (c *Controller) statusLocked(now time.Time) StatusSnapshot {
	snap := StatusSnapshot{
		Timestamp:         now,
		Mode:              c.mode,
		Signals:           make(map[model.Direction]model.SignalState, 4),
		CurrentGreen:      c.currentGreen,
		Vehicles:          make(map[model.Direction]int, 4),
		PedestrianPending: make(map[model.Direction]bool, 4),
	}
	for _, d := range model.AllDirections() {
		snap.Signals[d] = c.aspects[d]
		snap.Vehicles[d] = c.vehicles[d]
		snap.PedestrianPending[d] = c.ped[d].pending
	}
	if c.emergency.active {
		snap.EmergencyActive = true
		snap.EmergencyDirection = c.emergency.direction
	}
	return snap
}

// DetailedStatus returns the full scheduler view: per-direction demand,
// pedestrian bookkeeping, live settings and running stats.
func (c *Controller) DetailedStatus() DetailedSnapshot {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	detail := DetailedSnapshot{
		StatusSnapshot: c.statusLocked(now),
		Directions:     make(map[model.Direction]DirectionDetail, 4),
		Settings:       c.settings,
		Stats:          c.stats.snapshot(now),
		EventCount:     c.events.len(),
	}
	for _, d := range model.AllDirections() {
		p := c.ped[d]
		dd := DirectionDetail{
			Vehicles:          c.vehicles[d],
			WaitSeconds:       c.waitSeconds(d, now),
			WaitingCycles:     c.waitingCycles[d],
			ArrivalRate:       c.arrivals[d].rate(),
			Signal:            c.aspects[d],
			PedestrianPending: p.pending,
			PedestriansServed: p.served,
		}
		if p.pending && !p.waitStart.IsZero() {
			dd.PedestrianWait = now.Sub(p.waitStart).Seconds()
		}
		if !p.lastServed.IsZero() {
			rem := c.settings.PedestrianCooldown - now.Sub(p.lastServed).Seconds()
			if rem > 0 {
				dd.CooldownRemaining = rem
			}
		}
		detail.Directions[d] = dd
	}
	return detail
}
