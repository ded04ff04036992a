// Package settingswatch polls the runtime_settings table and pushes changed
// tunables into the running controller, so operators can retune the
// scheduler from the database without a restart.
package settingswatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/controller"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/health"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/store"
)

const defaultInterval = 30 * time.Second

// SettingsApplier receives parsed patches. Satisfied by
// *controller.Controller; the controller clamps each field itself.
type SettingsApplier interface {
	UpdateSettings(patch controller.SettingsPatch) controller.Settings
}

// Watcher diffs the active settings rows against the last-seen values and
// applies only what changed.
type Watcher struct {
	repo     store.RuntimeSettingsRepository
	applier  SettingsApplier
	tracker  *health.Tracker
	logger   *slog.Logger
	interval time.Duration

	lastSeen map[string]string
}

// New builds a watcher. tracker may be nil; interval <= 0 defaults to 30s.
func New(repo store.RuntimeSettingsRepository, applier SettingsApplier, tracker *health.Tracker, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Watcher{
		repo:     repo,
		applier:  applier,
		tracker:  tracker,
		logger:   logger.With("component", "settings_watcher"),
		interval: interval,
		lastSeen: make(map[string]string),
	}
}

// Run polls until ctx is canceled, loading once immediately.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("settings watcher started", "poll_interval", w.interval)

	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("settings watcher stopping")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	rows, err := w.repo.GetActive(ctx)
	if err != nil {
		w.logger.Warn("settings poll failed", "error", err)
		if w.tracker != nil {
			w.tracker.RecordFailure()
		}
		return
	}
	if w.tracker != nil {
		w.tracker.RecordSuccess()
	}

	// Keys deleted or deactivated in the table revert only on restart;
	// forget them so a re-insert of the old value is re-applied.
	for key := range w.lastSeen {
		if _, exists := rows[key]; !exists {
			delete(w.lastSeen, key)
		}
	}

	var patch controller.SettingsPatch
	changed := 0
	for key, value := range rows {
		if w.lastSeen[key] == value {
			continue
		}
		if err := applyKey(&patch, key, value); err != nil {
			w.logger.Warn("invalid runtime setting", "key", key, "value", value, "error", err)
			w.lastSeen[key] = value // do not re-log every poll
			continue
		}
		w.logger.Info("runtime setting changed", "key", key, "old_value", w.lastSeen[key], "new_value", value)
		w.lastSeen[key] = value
		changed++
	}

	if changed > 0 {
		w.applier.UpdateSettings(patch)
	}
}

// applyKey parses one key/value row into the patch. Keys are the settings
// patch field names; unknown keys are an error so typos surface in the log.
func applyKey(p *controller.SettingsPatch, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	setFloat := func(dst **float64) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}
		*dst = &f
		return nil
	}
	setInt := func(dst **int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		*dst = &n
		return nil
	}
	setBool := func(dst **bool) error {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			b := true
			*dst = &b
		case "false", "0", "no", "off":
			b := false
			*dst = &b
		default:
			return fmt.Errorf("parse bool %q", value)
		}
		return nil
	}

	switch key {
	case "min_green":
		return setFloat(&p.MinGreen)
	case "max_green":
		return setFloat(&p.MaxGreen)
	case "yellow_time":
		return setFloat(&p.YellowTime)
	case "red_yellow_time":
		return setFloat(&p.RedYellowTime)
	case "all_red_gap":
		return setFloat(&p.AllRedGap)
	case "car_min_green":
		return setFloat(&p.CarMinGreen)
	case "per_vehicle_time":
		return setFloat(&p.PerVehicleTime)
	case "waiting_bonus":
		return setFloat(&p.WaitingBonus)
	case "extension_time":
		return setFloat(&p.ExtensionTime)
	case "waiting_bonus_weight":
		return setFloat(&p.WaitingBonusWeight)
	case "car_favor_penalty":
		return setFloat(&p.CarFavorPenalty)
	case "pedestrian_green":
		return setFloat(&p.PedestrianGreen)
	case "pedestrian_cooldown":
		return setFloat(&p.PedestrianCooldown)
	case "pedestrian_min_wait":
		return setFloat(&p.PedestrianMinWait)
	case "pedestrian_max_wait":
		return setFloat(&p.PedestrianMaxWait)
	case "emergency_green":
		return setFloat(&p.EmergencyGreen)
	case "emergency_enabled":
		return setBool(&p.EmergencyEnabled)
	case "priority_lane_enabled":
		return setBool(&p.PriorityLaneEnabled)
	case "priority_lane_direction":
		v := strings.ToUpper(value)
		p.PriorityLaneDirection = &v
		return nil
	case "priority_lane_multiplier":
		return setFloat(&p.PriorityLaneMultiplier)
	case "priority_lane_min_vehicles":
		return setInt(&p.PriorityLaneMinVehicles)
	case "fairness_enabled":
		return setBool(&p.FairnessEnabled)
	case "max_wait_cycles":
		return setInt(&p.MaxWaitCycles)
	case "night_mode_enabled":
		return setBool(&p.NightModeEnabled)
	case "peak_hours_enabled":
		return setBool(&p.PeakHoursEnabled)
	}
	return fmt.Errorf("unknown settings key")
}
