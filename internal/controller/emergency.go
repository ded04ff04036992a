package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/alert"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/metrics"
)

const deferEmergencyExpiry = "emergency.expiry"

// HandleEmergency grants an emergency vehicle immediate green on its
// approach, bypassing the transition protocol. This is the single documented
// exception to the safety-ordered handoff. The slot is singular: while one
// preemption is active every further signal is ignored, and the grant expires
// on a deferred timer that re-checks the slot before clearing it. Returns
// whether the preemption was granted.
func (c *Controller) HandleEmergency(dir model.Direction) bool {
	if !dir.IsValid() {
		return false
	}
	now := c.now()

	c.mu.Lock()
	if !c.settings.EmergencyEnabled {
		c.mu.Unlock()
		metrics.EmergencyIgnoredTotal.Inc()
		return false
	}
	if c.emergency.active {
		active := c.emergency.direction
		c.mu.Unlock()
		metrics.EmergencyIgnoredTotal.Inc()
		c.logger.Debug("emergency signal ignored, slot busy", "active", active, "requested", dir)
		return false
	}
	green := c.settings.EmergencyGreen
	until := now.Add(time.Duration(green * float64(time.Second)))
	c.emergency = emergencyState{active: true, direction: dir, until: until}
	c.stats.emergencyCount++
	for _, d := range model.AllDirections() {
		if d == dir {
			c.aspects[d] = model.SignalGreen
		} else {
			c.aspects[d] = model.SignalRed
		}
	}
	c.currentGreen = dir
	c.mu.Unlock()

	// Immediate takeover: reds first, then the corridor green.
	c.cmdMu.Lock()
	for _, d := range model.AllDirections() {
		if d != dir {
			c.driveHead(d, model.SignalRed, model.TriggerEmergency)
		}
	}
	c.driveHead(dir, model.SignalGreen, model.TriggerEmergency)
	c.cmdMu.Unlock()

	c.defers.schedule(deferEmergencyExpiry, until, func(_ time.Time) bool {
		return c.expireEmergency(dir)
	})

	metrics.EmergencyActivationsTotal.WithLabelValues(string(dir)).Inc()
	c.logger.Warn("emergency preemption granted", "direction", dir, "green_seconds", green)
	c.appendEvent(model.EventEmergency, dir, fmt.Sprintf("emergency preemption, green for %.0fs", green))

	go func() {
		_ = c.alerts.Send(context.Background(), alert.Alert{
			Type:      alert.AlertTypeEmergencyPreempt,
			Direction: string(dir),
			Title:     "Emergency vehicle preemption",
			Message:   fmt.Sprintf("Corridor opened for %.0fs", green),
			Fields:    map[string]string{"green_seconds": fmt.Sprintf("%.0f", green)},
		})
	}()
	return true
}

// expireEmergency clears the preemption slot if it still belongs to dir.
// Fired from the deferred queue; a slot already released (emergency stop,
// mode change) makes this a stale no-op. In AUTO the next round transitions
// away from the corridor green normally; other modes get an all-RED reset so
// their own machinery restarts from a known state.
func (c *Controller) expireEmergency(dir model.Direction) bool {
	c.mu.Lock()
	if !c.emergency.active || c.emergency.direction != dir {
		c.mu.Unlock()
		return false
	}
	c.emergency = emergencyState{}
	mode := c.mode
	c.mu.Unlock()

	if mode != model.ModeAuto {
		if mode == model.ModeSimple {
			c.simpleMu.Lock()
			c.simpleAspect = model.SignalRed
			c.simpleMu.Unlock()
		}
		c.commandAll(model.SignalRed, model.TriggerEmergency)
	}

	c.logger.Info("emergency preemption expired", "direction", dir)
	c.appendEvent(model.EventEmergency, dir, "emergency preemption expired, resuming scheduling")
	return true
}

// EmergencyStop slams every head to RED and parks the controller in MANUAL
// mode. The operator owns the intersection until a new mode is set.
func (c *Controller) EmergencyStop() {
	c.mu.Lock()
	prev := c.mode
	c.mode = model.ModeManual
	c.emergency = emergencyState{}
	c.currentGreen = ""
	for _, d := range model.AllDirections() {
		c.aspects[d] = model.SignalRed
	}
	c.mu.Unlock()

	c.defers.cancel(deferEmergencyExpiry)
	c.defers.cancel(deferSimpleGreen)
	c.defers.cancel(deferSimpleRed)

	c.cmdMu.Lock()
	if err := c.driver.SetAll(model.SignalRed); err != nil {
		metrics.SignalCommandErrors.Inc()
		c.logger.Error("emergency stop driver write failed", "error", err)
	}
	c.cmdMu.Unlock()
	for _, d := range model.AllDirections() {
		metrics.SignalCommandsTotal.WithLabelValues(string(d), string(model.SignalRed)).Inc()
	}

	setModeGauge(model.ModeManual)

	c.logger.Warn("emergency stop engaged", "previous_mode", prev)
	c.appendEvent(model.EventEmergency, "", "emergency stop, all approaches RED, mode MANUAL")

	go func() {
		_ = c.alerts.Send(context.Background(), alert.Alert{
			Type:      alert.AlertTypeEmergencyStop,
			Direction: "ALL",
			Title:     "Emergency stop engaged",
			Message:   "All approaches forced to RED, controller parked in MANUAL",
			Fields:    map[string]string{"previous_mode": string(prev)},
		})
	}()
}
