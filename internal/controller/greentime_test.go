package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// noon is outside both the night window and the peak hours.
var noon = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func TestComputeGreenTime_BaselineIsCarMinGreen(t *testing.T) {
	t.Parallel()

	got := computeGreenTime(model.DirectionNorth, demandSnapshot{}, 0, testSettings(), noon)
	assert.Equal(t, 15.0, got, "no demand yields the car minimum green")
}

func TestComputeGreenTime_PerVehicleAndWaitBonus(t *testing.T) {
	t.Parallel()
	s := testSettings()

	got := computeGreenTime(model.DirectionNorth, demandSnapshot{Vehicles: 5}, 0, s, noon)
	assert.Equal(t, 30.0, got, "15 base + 5 vehicles * 3s")

	got = computeGreenTime(model.DirectionNorth, demandSnapshot{WaitSeconds: 20}, 0, s, noon)
	assert.Equal(t, 19.0, got, "15 base + (20/10) * 2s waiting bonus")
}

func TestComputeGreenTime_ArrivalExtensionIsCapped(t *testing.T) {
	t.Parallel()
	s := testSettings()

	// Below the 0.5/s threshold: no extension.
	got := computeGreenTime(model.DirectionNorth, demandSnapshot{ArrivalRate: 0.4}, 0, s, noon)
	assert.Equal(t, 15.0, got)

	got = computeGreenTime(model.DirectionNorth, demandSnapshot{ArrivalRate: 1}, 0, s, noon)
	assert.Equal(t, 18.0, got, "15 base + 3s extension * rate 1")

	// The rate is capped at 2 vehicles/s before it scales the extension.
	got = computeGreenTime(model.DirectionNorth, demandSnapshot{ArrivalRate: 9}, 0, s, noon)
	assert.Equal(t, 21.0, got)
}

func TestComputeGreenTime_PriorityLaneMultiplier(t *testing.T) {
	t.Parallel()
	s := testSettings()
	s.PriorityLaneEnabled = true
	s.PriorityLaneDirection = model.DirectionEast

	dem := demandSnapshot{Vehicles: 5}
	assert.Equal(t, 45.0, computeGreenTime(model.DirectionEast, dem, 0, s, noon), "30 * 1.5 lane multiplier")
	assert.Equal(t, 30.0, computeGreenTime(model.DirectionWest, dem, 0, s, noon), "other directions are unaffected")
}

func TestComputeGreenTime_PeakHourBoost(t *testing.T) {
	t.Parallel()
	s := testSettings()
	s.PeakHoursEnabled = true
	morning := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)

	got := computeGreenTime(model.DirectionNorth, demandSnapshot{Vehicles: 5}, 0, s, morning)
	assert.Equal(t, 36.0, got, "30 * 1.2 peak boost")

	got = computeGreenTime(model.DirectionNorth, demandSnapshot{Vehicles: 5}, 0, s, noon)
	assert.Equal(t, 30.0, got, "no boost outside the commute windows")
}

func TestComputeGreenTime_NightFloorForQuietApproach(t *testing.T) {
	t.Parallel()
	s := testSettings()
	s.NightModeEnabled = true
	night := time.Date(2025, 3, 12, 23, 0, 0, 0, time.UTC)

	// One vehicle at night collapses to the short hold, which the final
	// clamp then lifts to MinGreen.
	got := computeGreenTime(model.DirectionNorth, demandSnapshot{Vehicles: 1}, 0, s, night)
	assert.Equal(t, s.MinGreen, got)

	// Two or more vehicles keep the normal formula.
	got = computeGreenTime(model.DirectionNorth, demandSnapshot{Vehicles: 3}, 0, s, night)
	assert.Equal(t, 24.0, got)
}

func TestComputeGreenTime_FairnessReduction(t *testing.T) {
	t.Parallel()
	s := testSettings()

	dem := demandSnapshot{Vehicles: 5}
	got := computeGreenTime(model.DirectionNorth, dem, s.MaxWaitCycles, s, noon)
	assert.Equal(t, 21.0, got, "30 * 0.7 when another approach hit the wait-cycle bound")

	s.FairnessEnabled = false
	got = computeGreenTime(model.DirectionNorth, dem, s.MaxWaitCycles, s, noon)
	assert.Equal(t, 30.0, got)
}

func TestComputeGreenTime_ClampsToMaxGreen(t *testing.T) {
	t.Parallel()

	got := computeGreenTime(model.DirectionNorth, demandSnapshot{Vehicles: 30}, 0, testSettings(), noon)
	assert.Equal(t, 60.0, got)
}

func TestIsPeakHour_Windows(t *testing.T) {
	t.Parallel()
	s := testSettings()
	s.PeakHoursEnabled = true

	day := func(h int) time.Time { return time.Date(2025, 3, 12, h, 30, 0, 0, time.UTC) }
	assert.True(t, isPeakHour(day(7), s))
	assert.True(t, isPeakHour(day(8), s))
	assert.False(t, isPeakHour(day(9), s))
	assert.True(t, isPeakHour(day(17), s))
	assert.False(t, isPeakHour(day(19), s))
	assert.False(t, isPeakHour(day(12), s))
}

func TestIsNight_WrapsMidnight(t *testing.T) {
	t.Parallel()
	s := testSettings()
	s.NightModeEnabled = true

	day := func(h int) time.Time { return time.Date(2025, 3, 12, h, 0, 0, 0, time.UTC) }
	assert.True(t, isNight(day(22), s))
	assert.True(t, isNight(day(2), s))
	assert.False(t, isNight(day(6), s))
	assert.False(t, isNight(day(21), s))
}
