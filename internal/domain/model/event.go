package model

import "time"

// EventCategory classifies controller event-log entries.
type EventCategory string

const (
	EventSystem     EventCategory = "SYSTEM"
	EventTransition EventCategory = "TRANSITION"
	EventPedestrian EventCategory = "PEDESTRIAN"
	EventManual     EventCategory = "MANUAL"
	EventEmergency  EventCategory = "EMERGENCY"
	EventDetection  EventCategory = "DETECTION"
)

// EventLogEntry is one record in the controller's bounded in-memory log.
type EventLogEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Category  EventCategory `json:"category"`
	Direction Direction     `json:"direction,omitempty"`
	Message   string        `json:"message"`
}
