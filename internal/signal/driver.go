// Package signal contains the output drivers that push controller decisions
// to the physical signal heads. Drivers are best-effort: the scheduler logs
// failures and keeps going, so implementations must never block for long.
package signal

import (
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// Driver commands the per-approach signal heads.
type Driver interface {
	// SetDirectionState changes one approach's aspect.
	SetDirectionState(dir model.Direction, state model.SignalState) error
	// SetAll applies the same aspect to every approach.
	SetAll(state model.SignalState) error
	// States returns the last commanded aspect per approach.
	States() map[model.Direction]model.SignalState
	Close() error
}
