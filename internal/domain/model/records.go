package model

import "time"

// Persistence records written by the async recorder. These mirror the
// controller's event stream into durable storage for analytics; the
// scheduling path never depends on them.

// DetectionEvent is a durable copy of an event-log entry.
type DetectionEvent struct {
	ID           int64
	Timestamp    time.Time
	Category     EventCategory
	Direction    Direction
	Message      string
	VehicleCount int
}

// SignalChange records a single signal head changing aspect.
type SignalChange struct {
	ID        int64
	Timestamp time.Time
	Direction Direction
	State     SignalState
	Trigger   TransitionTrigger
}

// VehicleCountSample is a point-in-time snapshot of per-direction demand.
type VehicleCountSample struct {
	ID        int64
	Timestamp time.Time
	North     int
	East      int
	South     int
	West      int
	Total     int
}

// CountsFromMap builds a sample from a per-direction count map.
func CountsFromMap(ts time.Time, counts map[Direction]int) VehicleCountSample {
	s := VehicleCountSample{
		Timestamp: ts,
		North:     counts[DirectionNorth],
		East:      counts[DirectionEast],
		South:     counts[DirectionSouth],
		West:      counts[DirectionWest],
	}
	s.Total = s.North + s.East + s.South + s.West
	return s
}

// DailyStats aggregates one day of controller activity.
type DailyStats struct {
	Date                time.Time
	TotalVehicles       int64
	CycleCount          int64
	PedestriansServed   int64
	EmergencyCount      int64
	AverageWaitSeconds  float64
	GreenTimeEfficiency float64
	UptimeSeconds       int64
}
