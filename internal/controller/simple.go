package controller

import (
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// SIMPLE mode reacts to the aggregate vehicle total only. It drives one
// representative head (NORTH, the first enum direction) through the aspect
// sequence while the other approaches hold RED, so the single-GREEN invariant
// is preserved. Revivals and degrades race against deferred timers; every
// timer callback re-validates the aspect it expects before acting.

const (
	deferSimpleGreen = "simple.green"
	deferSimpleRed   = "simple.red"
)

const simpleHead = model.DirectionNorth

// simpleDetection reacts to one detection frame's aggregate total. Called
// with no locks held.
func (c *Controller) simpleDetection(total int, now time.Time) {
	c.simpleMu.Lock()
	defer c.simpleMu.Unlock()

	if total <= 0 {
		// Quiet frames do not start the degrade; the loop tick does, once
		// the green has been quiet long enough.
		return
	}
	c.lastVehicle = now

	if c.emergencyActive() {
		// The preemption owns the heads; the machine resumes on expiry.
		return
	}

	switch c.simpleAspect {
	case model.SignalRed:
		c.simpleAspect = model.SignalRedYellow
		c.setSimpleHead(model.SignalRedYellow)
		at := now.Add(time.Duration(c.SettingsSnapshot().RedYellowTime * float64(time.Second)))
		c.defers.schedule(deferSimpleGreen, at, c.fireSimpleGreen)

	case model.SignalYellow:
		// Mid-degrade revival: cancel the pending red and return to green.
		c.defers.cancel(deferSimpleRed)
		c.simpleAspect = model.SignalGreen
		c.setSimpleHead(model.SignalGreen)

	default:
		// RED_YELLOW already has a green pending; GREEN needs nothing.
	}
}

// fireSimpleGreen completes the RED_YELLOW -> GREEN step. Stale if the mode
// or aspect moved on while the timer was pending.
func (c *Controller) fireSimpleGreen(_ time.Time) bool {
	c.simpleMu.Lock()
	defer c.simpleMu.Unlock()

	if c.Mode() != model.ModeSimple || c.simpleAspect != model.SignalRedYellow || c.emergencyActive() {
		return false
	}
	c.simpleAspect = model.SignalGreen
	c.setSimpleHead(model.SignalGreen)
	return true
}

// fireSimpleRed completes the YELLOW -> RED degrade step. Stale if a new
// detection revived the green in the meantime.
func (c *Controller) fireSimpleRed(_ time.Time) bool {
	c.simpleMu.Lock()
	defer c.simpleMu.Unlock()

	if c.Mode() != model.ModeSimple || c.simpleAspect != model.SignalYellow || c.emergencyActive() {
		return false
	}
	c.simpleAspect = model.SignalRed
	c.setSimpleHead(model.SignalRed)
	return true
}

// maybeDegradeSimple starts the GREEN -> YELLOW -> RED degrade once the green
// has seen no vehicles for at least MinGreen seconds. Called from the loop
// tick with no locks held.
func (c *Controller) maybeDegradeSimple(now time.Time) {
	c.simpleMu.Lock()
	defer c.simpleMu.Unlock()

	if c.simpleAspect != model.SignalGreen || c.lastVehicle.IsZero() || c.emergencyActive() {
		return
	}
	s := c.SettingsSnapshot()
	if now.Sub(c.lastVehicle).Seconds() < s.MinGreen {
		return
	}
	c.simpleAspect = model.SignalYellow
	c.setSimpleHead(model.SignalYellow)
	at := now.Add(time.Duration(s.YellowTime * float64(time.Second)))
	c.defers.schedule(deferSimpleRed, at, c.fireSimpleRed)
}

// setSimpleHead mirrors the simple-mode aspect onto the representative head.
// Callers hold simpleMu.
func (c *Controller) setSimpleHead(state model.SignalState) {
	c.mu.Lock()
	c.aspects[simpleHead] = state
	if state == model.SignalGreen {
		c.currentGreen = simpleHead
	} else if c.currentGreen == simpleHead {
		c.currentGreen = ""
	}
	c.mu.Unlock()

	c.cmdMu.Lock()
	c.driveHead(simpleHead, state, model.TriggerDetection)
	c.cmdMu.Unlock()

	c.appendEvent(model.EventDetection, simpleHead, "simple mode set "+string(state))
}
