package controller

import (
	"fmt"
	"os"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Settings are the scheduler tunables. Every numeric field has a documented
// [min,max] range; updates are clamped into range, never rejected. Durations
// are plain seconds because the scoring and green-time formulas are
// arithmetic over them.
type Settings struct {
	MinGreen       float64 `json:"min_green" yaml:"min_green"`
	MaxGreen       float64 `json:"max_green" yaml:"max_green"`
	YellowTime     float64 `json:"yellow_time" yaml:"yellow_time"`
	RedYellowTime  float64 `json:"red_yellow_time" yaml:"red_yellow_time"`
	AllRedGap      float64 `json:"all_red_gap" yaml:"all_red_gap"`
	CarMinGreen    float64 `json:"car_min_green" yaml:"car_min_green"`
	PerVehicleTime float64 `json:"per_vehicle_time" yaml:"per_vehicle_time"`
	WaitingBonus   float64 `json:"waiting_bonus" yaml:"waiting_bonus"`
	ExtensionTime  float64 `json:"extension_time" yaml:"extension_time"`

	WaitingBonusWeight float64 `json:"waiting_bonus_weight" yaml:"waiting_bonus_weight"`
	CarFavorPenalty    float64 `json:"car_favor_penalty" yaml:"car_favor_penalty"`

	PedestrianGreen    float64 `json:"pedestrian_green" yaml:"pedestrian_green"`
	PedestrianCooldown float64 `json:"pedestrian_cooldown" yaml:"pedestrian_cooldown"`
	PedestrianMinWait  float64 `json:"pedestrian_min_wait" yaml:"pedestrian_min_wait"`
	PedestrianMaxWait  float64 `json:"pedestrian_max_wait" yaml:"pedestrian_max_wait"`

	EmergencyGreen   float64 `json:"emergency_green" yaml:"emergency_green"`
	EmergencyEnabled bool    `json:"emergency_enabled" yaml:"emergency_enabled"`

	PriorityLaneEnabled     bool            `json:"priority_lane_enabled" yaml:"priority_lane_enabled"`
	PriorityLaneDirection   model.Direction `json:"priority_lane_direction" yaml:"priority_lane_direction"`
	PriorityLaneMultiplier  float64         `json:"priority_lane_multiplier" yaml:"priority_lane_multiplier"`
	PriorityLaneMinVehicles int             `json:"priority_lane_min_vehicles" yaml:"priority_lane_min_vehicles"`

	FairnessEnabled bool `json:"fairness_enabled" yaml:"fairness_enabled"`
	MaxWaitCycles   int  `json:"max_wait_cycles" yaml:"max_wait_cycles"`

	NightModeEnabled bool `json:"night_mode_enabled" yaml:"night_mode_enabled"`
	PeakHoursEnabled bool `json:"peak_hours_enabled" yaml:"peak_hours_enabled"`
}

// DefaultSettings returns the factory tuning.
func DefaultSettings() Settings {
	return Settings{
		MinGreen:       10,
		MaxGreen:       60,
		YellowTime:     2,
		RedYellowTime:  1.5,
		AllRedGap:      0.5,
		CarMinGreen:    15,
		PerVehicleTime: 3,
		WaitingBonus:   2,
		ExtensionTime:  3,

		WaitingBonusWeight: 5,
		CarFavorPenalty:    20,

		PedestrianGreen:    15,
		PedestrianCooldown: 30,
		PedestrianMinWait:  10,
		PedestrianMaxWait:  60,

		EmergencyGreen:   30,
		EmergencyEnabled: true,

		PriorityLaneEnabled:     false,
		PriorityLaneDirection:   model.DirectionNorth,
		PriorityLaneMultiplier:  1.5,
		PriorityLaneMinVehicles: 2,

		FairnessEnabled: true,
		MaxWaitCycles:   3,

		NightModeEnabled: true,
		PeakHoursEnabled: true,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged;
// present fields are clamped independently.
type SettingsPatch struct {
	MinGreen       *float64 `json:"min_green" yaml:"min_green"`
	MaxGreen       *float64 `json:"max_green" yaml:"max_green"`
	YellowTime     *float64 `json:"yellow_time" yaml:"yellow_time"`
	RedYellowTime  *float64 `json:"red_yellow_time" yaml:"red_yellow_time"`
	AllRedGap      *float64 `json:"all_red_gap" yaml:"all_red_gap"`
	CarMinGreen    *float64 `json:"car_min_green" yaml:"car_min_green"`
	PerVehicleTime *float64 `json:"per_vehicle_time" yaml:"per_vehicle_time"`
	WaitingBonus   *float64 `json:"waiting_bonus" yaml:"waiting_bonus"`
	ExtensionTime  *float64 `json:"extension_time" yaml:"extension_time"`

	WaitingBonusWeight *float64 `json:"waiting_bonus_weight" yaml:"waiting_bonus_weight"`
	CarFavorPenalty    *float64 `json:"car_favor_penalty" yaml:"car_favor_penalty"`

	PedestrianGreen    *float64 `json:"pedestrian_green" yaml:"pedestrian_green"`
	PedestrianCooldown *float64 `json:"pedestrian_cooldown" yaml:"pedestrian_cooldown"`
	PedestrianMinWait  *float64 `json:"pedestrian_min_wait" yaml:"pedestrian_min_wait"`
	PedestrianMaxWait  *float64 `json:"pedestrian_max_wait" yaml:"pedestrian_max_wait"`

	EmergencyGreen   *float64 `json:"emergency_green" yaml:"emergency_green"`
	EmergencyEnabled *bool    `json:"emergency_enabled" yaml:"emergency_enabled"`

	PriorityLaneEnabled     *bool    `json:"priority_lane_enabled" yaml:"priority_lane_enabled"`
	PriorityLaneDirection   *string  `json:"priority_lane_direction" yaml:"priority_lane_direction"`
	PriorityLaneMultiplier  *float64 `json:"priority_lane_multiplier" yaml:"priority_lane_multiplier"`
	PriorityLaneMinVehicles *int     `json:"priority_lane_min_vehicles" yaml:"priority_lane_min_vehicles"`

	FairnessEnabled *bool `json:"fairness_enabled" yaml:"fairness_enabled"`
	MaxWaitCycles   *int  `json:"max_wait_cycles" yaml:"max_wait_cycles"`

	NightModeEnabled *bool `json:"night_mode_enabled" yaml:"night_mode_enabled"`
	PeakHoursEnabled *bool `json:"peak_hours_enabled" yaml:"peak_hours_enabled"`
}

// Documented clamp ranges.
const (
	minGreenLo, minGreenHi             = 5, 30
	maxGreenLo, maxGreenHi             = 30, 120
	yellowLo, yellowHi                 = 2, 5
	redYellowLo, redYellowHi           = 1, 3
	allRedGapLo, allRedGapHi           = 0.5, 3
	carMinGreenLo, carMinGreenHi       = 5, 30
	perVehicleLo, perVehicleHi         = 1, 10
	waitingBonusLo, waitingBonusHi     = 0, 10
	extensionLo, extensionHi           = 0, 10
	waitingWeightLo, waitingWeightHi   = 0, 20
	carFavorLo, carFavorHi             = 0, 50
	pedGreenLo, pedGreenHi             = 10, 30
	pedCooldownLo, pedCooldownHi       = 10, 120
	pedMinWaitLo, pedMinWaitHi         = 5, 30
	pedMaxWaitLo, pedMaxWaitHi         = 30, 120
	emergencyGreenLo, emergencyGreenHi = 10, 60
	laneMultLo, laneMultHi             = 1.0, 3.0
	laneMinVehLo, laneMinVehHi         = 0, 10
	maxWaitCyclesLo, maxWaitCyclesHi   = 1, 10
)

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Apply merges p into s, clamping each present field to its documented range.
// Out-of-range values are clamped, never rejected. Unknown priority lane
// directions are ignored.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.MinGreen != nil {
		s.MinGreen = clampFloat(*p.MinGreen, minGreenLo, minGreenHi)
	}
	if p.MaxGreen != nil {
		s.MaxGreen = clampFloat(*p.MaxGreen, maxGreenLo, maxGreenHi)
	}
	if p.YellowTime != nil {
		s.YellowTime = clampFloat(*p.YellowTime, yellowLo, yellowHi)
	}
	if p.RedYellowTime != nil {
		s.RedYellowTime = clampFloat(*p.RedYellowTime, redYellowLo, redYellowHi)
	}
	if p.AllRedGap != nil {
		s.AllRedGap = clampFloat(*p.AllRedGap, allRedGapLo, allRedGapHi)
	}
	if p.CarMinGreen != nil {
		s.CarMinGreen = clampFloat(*p.CarMinGreen, carMinGreenLo, carMinGreenHi)
	}
	if p.PerVehicleTime != nil {
		s.PerVehicleTime = clampFloat(*p.PerVehicleTime, perVehicleLo, perVehicleHi)
	}
	if p.WaitingBonus != nil {
		s.WaitingBonus = clampFloat(*p.WaitingBonus, waitingBonusLo, waitingBonusHi)
	}
	if p.ExtensionTime != nil {
		s.ExtensionTime = clampFloat(*p.ExtensionTime, extensionLo, extensionHi)
	}
	if p.WaitingBonusWeight != nil {
		s.WaitingBonusWeight = clampFloat(*p.WaitingBonusWeight, waitingWeightLo, waitingWeightHi)
	}
	if p.CarFavorPenalty != nil {
		s.CarFavorPenalty = clampFloat(*p.CarFavorPenalty, carFavorLo, carFavorHi)
	}
	if p.PedestrianGreen != nil {
		s.PedestrianGreen = clampFloat(*p.PedestrianGreen, pedGreenLo, pedGreenHi)
	}
	if p.PedestrianCooldown != nil {
		s.PedestrianCooldown = clampFloat(*p.PedestrianCooldown, pedCooldownLo, pedCooldownHi)
	}
	if p.PedestrianMinWait != nil {
		s.PedestrianMinWait = clampFloat(*p.PedestrianMinWait, pedMinWaitLo, pedMinWaitHi)
	}
	if p.PedestrianMaxWait != nil {
		s.PedestrianMaxWait = clampFloat(*p.PedestrianMaxWait, pedMaxWaitLo, pedMaxWaitHi)
	}
	if p.EmergencyGreen != nil {
		s.EmergencyGreen = clampFloat(*p.EmergencyGreen, emergencyGreenLo, emergencyGreenHi)
	}
	if p.EmergencyEnabled != nil {
		s.EmergencyEnabled = *p.EmergencyEnabled
	}
	if p.PriorityLaneEnabled != nil {
		s.PriorityLaneEnabled = *p.PriorityLaneEnabled
	}
	if p.PriorityLaneDirection != nil {
		if d, err := model.ParseDirection(*p.PriorityLaneDirection); err == nil {
			s.PriorityLaneDirection = d
		}
	}
	if p.PriorityLaneMultiplier != nil {
		s.PriorityLaneMultiplier = clampFloat(*p.PriorityLaneMultiplier, laneMultLo, laneMultHi)
	}
	if p.PriorityLaneMinVehicles != nil {
		s.PriorityLaneMinVehicles = clampInt(*p.PriorityLaneMinVehicles, laneMinVehLo, laneMinVehHi)
	}
	if p.FairnessEnabled != nil {
		s.FairnessEnabled = *p.FairnessEnabled
	}
	if p.MaxWaitCycles != nil {
		s.MaxWaitCycles = clampInt(*p.MaxWaitCycles, maxWaitCyclesLo, maxWaitCyclesHi)
	}
	if p.NightModeEnabled != nil {
		s.NightModeEnabled = *p.NightModeEnabled
	}
	if p.PeakHoursEnabled != nil {
		s.PeakHoursEnabled = *p.PeakHoursEnabled
	}
	return s
}

// LoadSettingsFile overlays a YAML patch file onto the defaults. A missing
// path returns plain defaults.
func LoadSettingsFile(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings file: %w", err)
	}
	var patch SettingsPatch
	if err := yaml.Unmarshal(data, &patch); err != nil {
		return s, fmt.Errorf("parse settings file: %w", err)
	}
	return s.Apply(patch), nil
}
