package controller

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/alert"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/metrics"
)

const (
	// pollTick is the loop's base granularity: green holds, interrupt
	// checks and cancellation all resolve within one tick.
	pollTick = 500 * time.Millisecond

	// startupAllRed is the safety pause before the first scheduling round.
	startupAllRed = 2 * time.Second

	iterationBackoff = time.Second
	manualIdle       = time.Second
)

// Run drives the scheduler on the calling goroutine until ctx is canceled.
// All timer-fired work (simple-mode steps, emergency expiry) executes here
// via the deferred queue, so exactly one goroutine mutates scheduling state.
// On exit every head is forced to RED.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.loopDone)

	c.logger.Info("controller starting", "mode", c.Mode())
	c.commandAll(model.SignalRed, model.TriggerAuto)
	c.appendEvent(model.EventSystem, "", "controller started, all approaches RED")
	c.sleep(ctx.Done(), startupAllRed)

	for {
		if err := ctx.Err(); err != nil {
			c.commandAll(model.SignalRed, model.TriggerAuto)
			c.appendEvent(model.EventSystem, "", "controller stopped, all approaches RED")
			c.logger.Info("controller stopped")
			return err
		}
		c.iterate(ctx)
	}
}

// Close waits up to timeout for the control loop to exit after its context
// was canceled.
func (c *Controller) Close(timeout time.Duration) error {
	select {
	case <-c.loopDone:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("controller loop did not stop within %s", timeout)
	}
}

// iterate runs one loop pass. Panics are contained here: the loop logs,
// backs off and continues, never taking the process down.
func (c *Controller) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerRoundErrors.Inc()
			c.logger.Error("scheduling iteration panicked", "panic", r, "stack", string(debug.Stack()))
			c.appendEvent(model.EventSystem, "", fmt.Sprintf("scheduler iteration panic: %v", r))
			go func() {
				_ = c.alerts.Send(context.Background(), alert.Alert{
					Type:    alert.AlertTypeControllerFault,
					Title:   "Scheduling iteration panicked",
					Message: fmt.Sprintf("%v", r),
				})
			}()
			c.sleep(ctx.Done(), iterationBackoff)
		}
	}()

	c.fireDue()

	switch c.Mode() {
	case model.ModeAuto:
		c.runRound(ctx)
	case model.ModeSimple:
		c.maybeDegradeSimple(c.now())
		c.sleep(ctx.Done(), pollTick)
	case model.ModeManual:
		c.sleep(ctx.Done(), manualIdle)
	}
}

// fireDue pops and fires every deferred event whose time has come. Events
// that find their expected state gone are counted as stale no-ops.
func (c *Controller) fireDue() {
	for _, ev := range c.defers.popDue(c.now()) {
		if ev.fire(c.now()) {
			metrics.DeferredEventsFired.Inc()
		} else {
			metrics.DeferredEventsStale.Inc()
			c.logger.Debug("deferred event found stale state", "name", ev.name)
		}
	}
}

// selectWinner picks the next direction to serve. Forced pedestrian
// crossings preempt scoring entirely; otherwise the ranked list is walked to
// the first entry with actual demand. ok is false when the intersection is
// idle.
func selectWinner(demands map[model.Direction]demandSnapshot, s Settings) (winner model.Direction, cause string, ok bool) {
	for _, d := range model.AllDirections() {
		dem := demands[d]
		if dem.PedestrianPending && dem.PedestrianWait >= s.PedestrianMaxWait {
			return d, "pedestrian_forced", true
		}
	}
	for _, sc := range rankDirections(demands, s) {
		if sc.Demand.hasDemand() {
			return sc.Direction, "score", true
		}
	}
	return "", "", false
}

// runRound executes one AUTO scheduling round: select a winner, hand the
// green over via the transition protocol, book the round, then hold the
// green for the computed time.
func (c *Controller) runRound(ctx context.Context) {
	start := c.now()

	if c.emergencyActive() {
		// The preemption owns the heads until its expiry timer clears it.
		c.sleep(ctx.Done(), pollTick)
		return
	}

	c.mu.Lock()
	demands := c.snapshotDemands(start)
	s := c.settings
	cur := c.currentGreen
	c.mu.Unlock()

	winner, cause, ok := selectWinner(demands, s)
	if !ok {
		// Empty intersection: no accounting, just poll for demand.
		c.sleep(ctx.Done(), pollTick)
		return
	}

	dem := demands[winner]
	otherMax := 0
	for d, dd := range demands {
		if d != winner && dd.WaitingCycles > otherMax {
			otherMax = dd.WaitingCycles
		}
	}
	green := computeGreenTime(winner, dem, otherMax, s, start)

	hold := green
	servePed := dem.PedestrianPending
	if servePed && s.PedestrianGreen > hold {
		hold = s.PedestrianGreen
	}

	metrics.SchedulerRoundsTotal.Inc()
	metrics.SchedulerSelectionsTotal.WithLabelValues(string(winner), cause).Inc()
	metrics.SchedulerGreenSeconds.WithLabelValues(string(winner)).Observe(green)
	c.logger.Info("direction selected",
		"direction", winner,
		"cause", cause,
		"green_seconds", green,
		"vehicles", dem.Vehicles,
		"waiting_cycles", dem.WaitingCycles,
	)

	if winner != cur {
		if !c.transitionTo(ctx, winner) {
			return
		}
	}

	now := c.now()
	c.mu.Lock()
	for _, d := range model.AllDirections() {
		if d == winner {
			c.waitingCycles[d] = 0
			c.waitSince[d] = now
		} else {
			c.waitingCycles[d]++
		}
	}
	c.stats.recordSelection(dem.Vehicles, dem.WaitSeconds, green, s.PerVehicleTime)
	c.mu.Unlock()

	c.appendEventN(model.EventTransition, winner,
		fmt.Sprintf("%s green for %.0fs (%s)", winner, green, cause), dem.Vehicles)

	c.holdGreen(ctx, winner, hold, s.MinGreen, servePed)

	if servePed {
		c.finishPedestrian(winner, c.now())
	}

	metrics.SchedulerRoundLatency.Observe(c.now().Sub(start).Seconds())
}

// transitionTo runs the safety-ordered handoff from the current green to the
// selected direction:
//
//	A GREEN -> YELLOW  (hold YellowTime)
//	A YELLOW -> RED    (hold AllRedGap)
//	B RED -> RED_YELLOW (hold RedYellowTime)
//	B RED_YELLOW -> GREEN
//
// B is never commanded GREEN before A has reached RED. The handoff aborts
// between steps on cancellation, an emergency takeover, or a mode change;
// reports whether B actually reached GREEN.
func (c *Controller) transitionTo(ctx context.Context, to model.Direction) bool {
	c.mu.Lock()
	from := c.currentGreen
	s := c.settings
	c.mu.Unlock()

	if from == to {
		return true
	}

	if from != "" {
		if !c.setAspect(from, model.SignalYellow, model.TriggerAuto) {
			return false
		}
		if !c.stepWait(ctx, s.YellowTime) {
			return false
		}
		if !c.setAspect(from, model.SignalRed, model.TriggerAuto) {
			return false
		}
		if !c.stepWait(ctx, s.AllRedGap) {
			return false
		}
	}
	if !c.setAspect(to, model.SignalRedYellow, model.TriggerAuto) {
		return false
	}
	if !c.stepWait(ctx, s.RedYellowTime) {
		return false
	}
	return c.setAspect(to, model.SignalGreen, model.TriggerAuto)
}

// setAspect commits one scheduled aspect change and pushes it to the driver.
// The commit is refused once the scheduler no longer owns the heads (an
// emergency takeover or a mode change), and the driver write is skipped if
// the committed aspect was overwritten before the command serialized; the
// overwriting path has already driven the head.
func (c *Controller) setAspect(dir model.Direction, state model.SignalState, trigger model.TransitionTrigger) bool {
	c.mu.Lock()
	if c.emergency.active || c.mode != model.ModeAuto {
		c.mu.Unlock()
		return false
	}
	c.aspects[dir] = state
	if state == model.SignalGreen {
		c.currentGreen = dir
	} else if c.currentGreen == dir {
		c.currentGreen = ""
	}
	c.mu.Unlock()

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.mu.Lock()
	stale := c.aspects[dir] != state
	c.mu.Unlock()
	if stale {
		return false
	}
	c.driveHead(dir, state, trigger)
	return true
}

// stepWait pauses between protocol steps, aborting on cancellation, an
// emergency takeover, or the scheduler losing the heads to another mode.
func (c *Controller) stepWait(ctx context.Context, seconds float64) bool {
	if !c.sleep(ctx.Done(), time.Duration(seconds*float64(time.Second))) {
		return false
	}
	return !c.emergencyActive() && c.Mode() == model.ModeAuto
}

// holdGreen waits out the computed green in poll slices, pumping deferred
// events each tick. The hold ends early on cancellation, an emergency
// takeover, a mode change, or, once the minimum green floor has elapsed, a
// pending pedestrian request. A hold that is itself serving a crossing
// ignores the pedestrian interrupt: the walk phase always completes.
func (c *Controller) holdGreen(ctx context.Context, dir model.Direction, holdSeconds, minGreen float64, serving bool) {
	start := c.now()
	deadline := start.Add(time.Duration(holdSeconds * float64(time.Second)))

	for {
		now := c.now()
		if !now.Before(deadline) {
			return
		}
		slice := pollTick
		if remaining := deadline.Sub(now); remaining < slice {
			slice = remaining
		}
		if !c.sleep(ctx.Done(), slice) {
			return
		}
		c.fireDue()
		if c.emergencyActive() || c.Mode() != model.ModeAuto {
			return
		}
		if !serving && c.now().Sub(start).Seconds() >= minGreen && c.pedestrianPendingAny() {
			c.logger.Debug("green hold interrupted by pedestrian request", "direction", dir)
			return
		}
	}
}

// pedestrianPendingAny reports whether any approach has a crossing waiting.
func (c *Controller) pedestrianPendingAny() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range model.AllDirections() {
		if c.ped[d].pending {
			return true
		}
	}
	return false
}
