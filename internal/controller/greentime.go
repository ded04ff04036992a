package controller

import (
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// computeGreenTime returns the green hold in seconds for a selected
// direction. otherMaxWaitCycles is the largest waiting-cycle count among the
// directions NOT selected; the fairness reduction and night-mode floor are
// applied last, before the final clamp.
func computeGreenTime(dir model.Direction, dem demandSnapshot, otherMaxWaitCycles int, s Settings, now time.Time) float64 {
	base := s.CarMinGreen + float64(dem.Vehicles)*s.PerVehicleTime
	base += (dem.WaitSeconds / 10) * s.WaitingBonus

	if dem.ArrivalRate > 0.5 {
		rate := dem.ArrivalRate
		if rate > 2 {
			rate = 2
		}
		base += s.ExtensionTime * rate
	}

	if s.PriorityLaneEnabled && dir == s.PriorityLaneDirection {
		base *= s.PriorityLaneMultiplier
	}

	if isPeakHour(now, s) {
		base *= 1.2
	}

	if isNight(now, s) && dem.Vehicles < 2 {
		base = s.MinGreen / 2
		if base < 5 {
			base = 5
		}
	}

	if s.FairnessEnabled && otherMaxWaitCycles >= s.MaxWaitCycles {
		base *= 0.7
	}

	return clampFloat(base, s.MinGreen, s.MaxGreen)
}

// Peak windows are the commute hours 07-09 and 17-19 local time.
func isPeakHour(now time.Time, s Settings) bool {
	if !s.PeakHoursEnabled {
		return false
	}
	h := now.Hour()
	return (h >= 7 && h < 9) || (h >= 17 && h < 19)
}

// Night runs 22-06 local time.
func isNight(now time.Time, s Settings) bool {
	if !s.NightModeEnabled {
		return false
	}
	h := now.Hour()
	return h >= 22 || h < 6
}
