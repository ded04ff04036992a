package controller

import (
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// runningStats accumulates scheduling activity since startup. Guarded by the
// controller's primary mutex.
type runningStats struct {
	startedAt         time.Time
	cycleCount        int64
	vehiclesProcessed int64
	pedestrianServed  int64
	emergencyCount    int64

	waitSum     float64 // served-direction wait seconds, for the mean
	waitSamples int64
	greenSum    float64 // green seconds granted
	demandSum   float64 // vehicles * per-vehicle time, for efficiency
}

// recordSelection books one completed selection: the winner's accumulated
// wait, the vehicles it drains, and the green time granted.
func (s *runningStats) recordSelection(vehicles int, waitSeconds, green, perVehicle float64) {
	s.cycleCount++
	s.vehiclesProcessed += int64(vehicles)
	s.waitSum += waitSeconds
	s.waitSamples++
	s.greenSum += green
	s.demandSum += float64(vehicles) * perVehicle
}

// StatsSnapshot is the running-counters view exposed on the detailed status
// and flushed into DailyStats.
type StatsSnapshot struct {
	CycleCount          int64   `json:"cycle_count"`
	TotalVehicles       int64   `json:"total_vehicles"`
	PedestriansServed   int64   `json:"pedestrians_served"`
	EmergencyCount      int64   `json:"emergency_count"`
	AverageWaitSeconds  float64 `json:"average_wait_seconds"`
	GreenTimeEfficiency float64 `json:"green_time_efficiency"`
	UptimeSeconds       int64   `json:"uptime_seconds"`
}

func (s *runningStats) snapshot(now time.Time) StatsSnapshot {
	snap := StatsSnapshot{
		CycleCount:        s.cycleCount,
		TotalVehicles:     s.vehiclesProcessed,
		PedestriansServed: s.pedestrianServed,
		EmergencyCount:    s.emergencyCount,
		UptimeSeconds:     int64(now.Sub(s.startedAt).Seconds()),
	}
	if s.waitSamples > 0 {
		snap.AverageWaitSeconds = s.waitSum / float64(s.waitSamples)
	}
	if s.greenSum > 0 {
		snap.GreenTimeEfficiency = s.demandSum / s.greenSum
		if snap.GreenTimeEfficiency > 1 {
			snap.GreenTimeEfficiency = 1
		}
	}
	return snap
}

// Stats returns the running counters.
func (c *Controller) Stats() StatsSnapshot {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot(now)
}

// DailyStats converts the running counters into the durable daily record.
func (c *Controller) DailyStats() model.DailyStats {
	snap := c.Stats()
	day := c.now().UTC().Truncate(24 * time.Hour)
	return model.DailyStats{
		Date:                day,
		TotalVehicles:       snap.TotalVehicles,
		CycleCount:          snap.CycleCount,
		PedestriansServed:   snap.PedestriansServed,
		EmergencyCount:      snap.EmergencyCount,
		AverageWaitSeconds:  snap.AverageWaitSeconds,
		GreenTimeEfficiency: snap.GreenTimeEfficiency,
		UptimeSeconds:       snap.UptimeSeconds,
	}
}
