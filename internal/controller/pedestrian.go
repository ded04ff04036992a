package controller

import (
	"fmt"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/metrics"
)

// CooldownError rejects a pedestrian request made before the per-direction
// cooldown has elapsed since the last served crossing.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("pedestrian request in cooldown, %.0fs remaining", e.Remaining.Seconds())
}

// PedestrianAck is the accepted-request response: when the wait started and
// a rough estimate of how long the caller will stand there.
type PedestrianAck struct {
	Direction            model.Direction `json:"direction"`
	WaitingSince         time.Time       `json:"waiting_since"`
	EstimatedWaitSeconds float64         `json:"estimated_wait_seconds"`
}

// RequestPedestrianCrossing registers a crossing request for one approach.
// Requests inside the cooldown window are rejected with the remaining time
// and cause no state change. A request while one is already pending is
// idempotent: the original wait-start is kept.
func (c *Controller) RequestPedestrianCrossing(dir model.Direction) (PedestrianAck, error) {
	if !dir.IsValid() {
		return PedestrianAck{}, fmt.Errorf("unknown direction %q", string(dir))
	}
	now := c.now()

	c.mu.Lock()
	p := c.ped[dir]
	s := c.settings

	if !p.lastServed.IsZero() {
		elapsed := now.Sub(p.lastServed).Seconds()
		if elapsed < s.PedestrianCooldown {
			remaining := time.Duration((s.PedestrianCooldown - elapsed) * float64(time.Second))
			c.mu.Unlock()
			metrics.PedestrianRequestsTotal.WithLabelValues(string(dir), "cooldown").Inc()
			return PedestrianAck{}, &CooldownError{Remaining: remaining}
		}
	}

	fresh := !p.pending
	p.pending = true
	if p.waitStart.IsZero() {
		p.waitStart = now
	}
	waitStart := p.waitStart
	carsAhead := c.vehicles[dir]
	c.mu.Unlock()

	// Rough queue-drain estimate: ~3s per car ahead, bounded by the
	// configured wait window.
	estimate := clampFloat(float64(carsAhead)*3, s.PedestrianMinWait, s.PedestrianMaxWait)

	if fresh {
		metrics.PedestrianRequestsTotal.WithLabelValues(string(dir), "accepted").Inc()
		c.logger.Info("pedestrian request accepted", "direction", dir, "estimated_wait", estimate)
		c.appendEvent(model.EventPedestrian, dir, fmt.Sprintf("crossing requested, estimated wait %.0fs", estimate))
	} else {
		metrics.PedestrianRequestsTotal.WithLabelValues(string(dir), "duplicate").Inc()
	}

	return PedestrianAck{
		Direction:            dir,
		WaitingSince:         waitStart,
		EstimatedWaitSeconds: estimate,
	}, nil
}

// finishPedestrian closes out a served crossing: clears the pending flag,
// stamps lastServed for the cooldown gate, and bumps the counters. Called by
// the control loop at the end of the serving green hold.
func (c *Controller) finishPedestrian(dir model.Direction, now time.Time) {
	c.mu.Lock()
	p := c.ped[dir]
	if !p.pending {
		c.mu.Unlock()
		return
	}
	p.pending = false
	p.waitStart = time.Time{}
	p.lastServed = now
	p.served++
	c.stats.pedestrianServed++
	c.mu.Unlock()

	metrics.PedestrianServedTotal.WithLabelValues(string(dir)).Inc()
	c.logger.Info("pedestrian crossing served", "direction", dir)
	c.appendEvent(model.EventPedestrian, dir, "crossing served")
}
