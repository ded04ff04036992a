package model

import "fmt"

// ControllerMode selects which scheduling logic the controller runs.
// Exactly one mode is active at a time.
type ControllerMode string

const (
	// ModeSimple reacts to aggregate demand only: green while vehicles are
	// present, degrade to red after a quiet period.
	ModeSimple ControllerMode = "SIMPLE"
	// ModeAuto runs the priority scheduler rounds.
	ModeAuto ControllerMode = "AUTO"
	// ModeManual parks the scheduler; signal changes come from the operator.
	ModeManual ControllerMode = "MANUAL"
)

func (m ControllerMode) String() string {
	return string(m)
}

var validModes = map[ControllerMode]struct{}{
	ModeSimple: {},
	ModeAuto:   {},
	ModeManual: {},
}

func (m ControllerMode) IsValid() bool {
	_, ok := validModes[m]
	return ok
}

// ParseMode validates a raw mode string from an external caller.
func ParseMode(s string) (ControllerMode, error) {
	m := ControllerMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown controller mode %q", s)
	}
	return m, nil
}
