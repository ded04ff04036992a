// Package controller implements the intersection scheduler: the mode state
// machine, the priority scorer and green-time calculator, pedestrian and
// emergency preemption, the safety-ordered transition protocol, and the
// single-owner control loop that drives them.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/alert"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/metrics"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/signal"
)

var (
	// ErrNotManualMode is returned when a direct signal command arrives
	// while the scheduler owns the heads.
	ErrNotManualMode = errors.New("controller is not in MANUAL mode")
	// ErrEmergencyActive rejects operator commands while a preemption owns
	// the intersection.
	ErrEmergencyActive = errors.New("emergency preemption active")
)

// Recorder receives controller activity for durable storage. Calls must be
// non-blocking; the scheduler never waits on persistence.
type Recorder interface {
	LogEvent(ev model.DetectionEvent)
	RecordSignalChange(ch model.SignalChange)
	RecordCounts(s model.VehicleCountSample)
}

type noopRecorder struct{}

func (noopRecorder) LogEvent(model.DetectionEvent)         {}
func (noopRecorder) RecordSignalChange(model.SignalChange) {}
func (noopRecorder) RecordCounts(model.VehicleCountSample) {}

// Deps are the controller's collaborators. Recorder and Alerter may be nil;
// no-op implementations are substituted.
type Deps struct {
	Driver   signal.Driver
	Recorder Recorder
	Alerter  alert.Alerter
}

// pedestrianState is the per-direction crossing bookkeeping.
type pedestrianState struct {
	pending    bool
	waitStart  time.Time
	lastServed time.Time
	served     int64
}

// emergencyState is the single preemption slot.
type emergencyState struct {
	active    bool
	direction model.Direction
	until     time.Time
}

// EmergencyInfo is the optional emergency flag carried on a detection update.
type EmergencyInfo struct {
	Detected  bool            `json:"detected"`
	Direction model.Direction `json:"direction"`
}

// Controller owns every piece of intersection state for the process
// lifetime. One instance is constructed at startup and handed to the
// transport layer; Run drives scheduling on a single goroutine.
type Controller struct {
	logger *slog.Logger
	driver signal.Driver
	rec    Recorder
	alerts alert.Alerter

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(done <-chan struct{}, d time.Duration) bool

	// mu guards all fields below it. Driver I/O and long waits happen
	// outside the lock.
	mu            sync.Mutex
	settings      Settings
	mode          model.ControllerMode
	aspects       map[model.Direction]model.SignalState
	currentGreen  model.Direction // "" when no direction holds green
	vehicles      map[model.Direction]int
	waitSince     map[model.Direction]time.Time // last time each direction was served
	waitingCycles map[model.Direction]int
	arrivals      map[model.Direction]*arrivalWindow
	ped           map[model.Direction]*pedestrianState
	emergency     emergencyState
	stats         runningStats

	// simpleMu serializes the simple-mode observe -> decide -> commit path
	// against deferred callbacks firing concurrently.
	simpleMu     sync.Mutex
	simpleAspect model.SignalState
	lastVehicle  time.Time // last positive detection in SIMPLE mode

	// cmdMu serializes multi-step driver command batches so an emergency
	// takeover and a normal transition never interleave their steps.
	cmdMu sync.Mutex

	events *eventLog
	defers *deferredQueue

	startedAt time.Time
	loopDone  chan struct{}
}

// New builds a controller bound to its collaborators. The heads are assumed
// RED until Run commands them.
func New(settings Settings, deps Deps, logger *slog.Logger) *Controller {
	rec := deps.Recorder
	if rec == nil {
		rec = noopRecorder{}
	}
	alerts := deps.Alerter
	if alerts == nil {
		alerts = &alert.NoopAlerter{}
	}

	c := &Controller{
		logger:        logger.With("component", "controller"),
		driver:        deps.Driver,
		rec:           rec,
		alerts:        alerts,
		now:           time.Now,
		sleep:         waitOrDone,
		settings:      settings,
		mode:          model.ModeAuto,
		aspects:       make(map[model.Direction]model.SignalState, 4),
		currentGreen:  "",
		vehicles:      make(map[model.Direction]int, 4),
		waitSince:     make(map[model.Direction]time.Time, 4),
		waitingCycles: make(map[model.Direction]int, 4),
		arrivals:      make(map[model.Direction]*arrivalWindow, 4),
		ped:           make(map[model.Direction]*pedestrianState, 4),
		simpleAspect:  model.SignalRed,
		events:        &eventLog{},
		defers:        &deferredQueue{},
		startedAt:     time.Now(),
		loopDone:      make(chan struct{}),
	}
	for _, d := range model.AllDirections() {
		c.aspects[d] = model.SignalRed
		c.waitSince[d] = c.startedAt
		c.arrivals[d] = &arrivalWindow{}
		c.ped[d] = &pedestrianState{}
	}
	c.stats.startedAt = c.startedAt
	setModeGauge(c.mode)
	return c
}

func setModeGauge(active model.ControllerMode) {
	for _, m := range []model.ControllerMode{model.ModeSimple, model.ModeAuto, model.ModeManual} {
		v := 0.0
		if m == active {
			v = 1
		}
		metrics.ModeActive.WithLabelValues(string(m)).Set(v)
	}
}

// waitOrDone sleeps for d unless done closes first; reports whether the full
// duration elapsed.
func waitOrDone(done <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}

// Mode returns the active controller mode.
func (c *Controller) Mode() model.ControllerMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches the scheduling logic. Invalid modes are rejected with no
// state change. Entering SIMPLE forces all heads to RED and clears the
// simple-mode sub-state; any in-flight AUTO green is discarded.
func (c *Controller) SetMode(m model.ControllerMode) error {
	if !m.IsValid() {
		return fmt.Errorf("unknown controller mode %q", string(m))
	}

	c.mu.Lock()
	prev := c.mode
	if prev == m {
		c.mu.Unlock()
		return nil
	}
	c.mode = m
	c.currentGreen = ""
	c.emergency = emergencyState{}
	for _, d := range model.AllDirections() {
		c.aspects[d] = model.SignalRed
	}
	c.mu.Unlock()

	// Stale timers from the previous mode must not fire into the new one.
	c.defers.cancel(deferSimpleGreen)
	c.defers.cancel(deferSimpleRed)
	c.defers.cancel(deferEmergencyExpiry)

	if m == model.ModeSimple {
		c.simpleMu.Lock()
		c.simpleAspect = model.SignalRed
		c.lastVehicle = time.Time{}
		c.simpleMu.Unlock()
	}

	c.commandAll(model.SignalRed, model.TriggerManual)
	setModeGauge(m)

	c.logger.Info("mode changed", "from", prev, "to", m)
	c.appendEvent(model.EventSystem, "", fmt.Sprintf("mode changed %s -> %s", prev, m))
	return nil
}

// ManualSetDirection applies an operator-commanded aspect to one approach.
// Only valid in MANUAL mode. Commanding GREEN forces every other approach to
// RED first so at most one head shows GREEN.
func (c *Controller) ManualSetDirection(dir model.Direction, state model.SignalState) error {
	if !dir.IsValid() {
		return fmt.Errorf("unknown direction %q", string(dir))
	}
	if !state.IsValid() {
		return fmt.Errorf("unknown signal state %q", string(state))
	}

	c.mu.Lock()
	if c.mode != model.ModeManual {
		mode := c.mode
		c.mu.Unlock()
		c.logger.Warn("manual signal command rejected", "mode", mode, "direction", dir, "state", state)
		return fmt.Errorf("manual command for %s in %s mode: %w", dir, mode, ErrNotManualMode)
	}
	if c.emergency.active {
		c.mu.Unlock()
		return fmt.Errorf("manual command for %s: %w", dir, ErrEmergencyActive)
	}
	if state == model.SignalGreen {
		for _, d := range model.AllDirections() {
			if d != dir {
				c.aspects[d] = model.SignalRed
			}
		}
		c.currentGreen = dir
	} else if c.currentGreen == dir {
		c.currentGreen = ""
	}
	c.aspects[dir] = state
	c.mu.Unlock()

	c.cmdMu.Lock()
	if state == model.SignalGreen {
		for _, d := range model.AllDirections() {
			if d != dir {
				c.driveHead(d, model.SignalRed, model.TriggerManual)
			}
		}
	}
	c.driveHead(dir, state, model.TriggerManual)
	c.cmdMu.Unlock()

	c.appendEventN(model.EventManual, dir, fmt.Sprintf("operator set %s to %s", dir, state), 0)
	return nil
}

// UpdateVehicleCounts ingests one detection frame. Counts are clamped to
// >= 0 and unknown directions dropped; the feed is untrusted. A carried
// emergency flag routes to HandleEmergency.
func (c *Controller) UpdateVehicleCounts(counts map[model.Direction]int, emergency *EmergencyInfo) {
	now := c.now()

	c.mu.Lock()
	total := 0
	for dir, n := range counts {
		if !dir.IsValid() {
			continue
		}
		if n < 0 {
			n = 0
		}
		c.vehicles[dir] = n
		c.arrivals[dir].push(now, n)
		total += n
		metrics.VehiclesWaiting.WithLabelValues(string(dir)).Set(float64(n))
	}
	mode := c.mode
	sample := model.CountsFromMap(now, c.vehicles)
	c.mu.Unlock()

	metrics.DetectionUpdatesTotal.Inc()
	c.rec.RecordCounts(sample)

	if mode == model.ModeSimple {
		c.simpleDetection(total, now)
	}

	if emergency != nil && emergency.Detected {
		c.HandleEmergency(emergency.Direction)
	}
}

// waitSeconds returns how long dir has gone unserved, in seconds.
// Callers hold mu.
func (c *Controller) waitSeconds(dir model.Direction, now time.Time) float64 {
	since := c.waitSince[dir]
	if since.IsZero() {
		return 0
	}
	sec := now.Sub(since).Seconds()
	if sec < 0 {
		return 0
	}
	return sec
}

// snapshotDemands captures the scoring inputs for every direction.
// Callers hold mu.
func (c *Controller) snapshotDemands(now time.Time) map[model.Direction]demandSnapshot {
	demands := make(map[model.Direction]demandSnapshot, 4)
	for _, d := range model.AllDirections() {
		p := c.ped[d]
		dem := demandSnapshot{
			Vehicles:          c.vehicles[d],
			WaitSeconds:       c.waitSeconds(d, now),
			WaitingCycles:     c.waitingCycles[d],
			ArrivalRate:       c.arrivals[d].rate(),
			PedestrianPending: p.pending,
		}
		if p.pending && !p.waitStart.IsZero() {
			dem.PedestrianWait = now.Sub(p.waitStart).Seconds()
		}
		demands[d] = dem
	}
	return demands
}

// SettingsSnapshot returns a copy of the live tunables.
func (c *Controller) SettingsSnapshot() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings merges a partial update, clamping each present field to its
// documented range, and returns the resulting settings.
func (c *Controller) UpdateSettings(patch SettingsPatch) Settings {
	c.mu.Lock()
	c.settings = c.settings.Apply(patch)
	applied := c.settings
	c.mu.Unlock()

	c.logger.Info("settings updated",
		"min_green", applied.MinGreen,
		"max_green", applied.MaxGreen,
		"pedestrian_cooldown", applied.PedestrianCooldown,
	)
	c.appendEvent(model.EventSystem, "", "algorithm settings updated")
	return applied
}

// Events returns up to limit recent event-log entries, oldest first.
func (c *Controller) Events(limit int) []model.EventLogEntry {
	return c.events.recent(limit)
}

// appendEvent writes to the bounded in-memory log and mirrors the entry to
// the recorder.
func (c *Controller) appendEvent(cat model.EventCategory, dir model.Direction, msg string) {
	c.appendEventN(cat, dir, msg, 0)
}

func (c *Controller) appendEventN(cat model.EventCategory, dir model.Direction, msg string, count int) {
	entry := c.events.append(c.now(), cat, dir, msg)
	c.rec.LogEvent(model.DetectionEvent{
		Timestamp:    entry.Timestamp,
		Category:     cat,
		Direction:    dir,
		Message:      msg,
		VehicleCount: count,
	})
}

// driveHead pushes one aspect to the output driver and records the change.
// Driver failures are logged and swallowed; the hardware write is
// best-effort. Never called with mu held.
func (c *Controller) driveHead(dir model.Direction, state model.SignalState, trigger model.TransitionTrigger) {
	if err := c.driver.SetDirectionState(dir, state); err != nil {
		metrics.SignalCommandErrors.Inc()
		c.logger.Warn("signal driver write failed", "direction", dir, "state", state, "error", err)
	}
	metrics.SignalCommandsTotal.WithLabelValues(string(dir), string(state)).Inc()
	c.rec.RecordSignalChange(model.SignalChange{
		Timestamp: c.now(),
		Direction: dir,
		State:     state,
		Trigger:   trigger,
	})
}

// commandAll forces every head to the same aspect and updates internal state.
func (c *Controller) commandAll(state model.SignalState, trigger model.TransitionTrigger) {
	c.mu.Lock()
	for _, d := range model.AllDirections() {
		c.aspects[d] = state
	}
	if state != model.SignalGreen {
		c.currentGreen = ""
	}
	c.mu.Unlock()

	c.cmdMu.Lock()
	if err := c.driver.SetAll(state); err != nil {
		metrics.SignalCommandErrors.Inc()
		c.logger.Warn("signal driver write failed", "state", state, "error", err)
	}
	c.cmdMu.Unlock()
	for _, d := range model.AllDirections() {
		metrics.SignalCommandsTotal.WithLabelValues(string(d), string(state)).Inc()
		c.rec.RecordSignalChange(model.SignalChange{
			Timestamp: c.now(),
			Direction: d,
			State:     state,
			Trigger:   trigger,
		})
	}
}

// emergencyActive reports whether a preemption currently owns the heads.
func (c *Controller) emergencyActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emergency.active
}
