package model

import "fmt"

// SignalState is the displayed aspect of one approach's signal head.
// At most one direction may be GREEN at any instant.
type SignalState string

const (
	SignalRed       SignalState = "RED"
	SignalYellow    SignalState = "YELLOW"
	SignalGreen     SignalState = "GREEN"
	SignalRedYellow SignalState = "RED_YELLOW"
	SignalOff       SignalState = "OFF"
)

func (s SignalState) String() string {
	return string(s)
}

var validSignalStates = map[SignalState]struct{}{
	SignalRed:       {},
	SignalYellow:    {},
	SignalGreen:     {},
	SignalRedYellow: {},
	SignalOff:       {},
}

func (s SignalState) IsValid() bool {
	_, ok := validSignalStates[s]
	return ok
}

// ParseSignalState validates a raw state string from an external caller.
func ParseSignalState(s string) (SignalState, error) {
	st := SignalState(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown signal state %q", s)
	}
	return st, nil
}

// TransitionTrigger records what caused a signal change.
type TransitionTrigger string

const (
	TriggerAuto       TransitionTrigger = "AUTO"
	TriggerManual     TransitionTrigger = "MANUAL"
	TriggerDetection  TransitionTrigger = "DETECTION"
	TriggerPedestrian TransitionTrigger = "PEDESTRIAN"
	TriggerEmergency  TransitionTrigger = "EMERGENCY"
)
