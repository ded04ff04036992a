package signal

import (
	"sync"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// Memory is the in-process driver used when no broker is configured and in
// tests. It only tracks the commanded aspects.
type Memory struct {
	mu     sync.RWMutex
	states map[model.Direction]model.SignalState
}

func NewMemory() *Memory {
	m := &Memory{states: make(map[model.Direction]model.SignalState, 4)}
	for _, d := range model.AllDirections() {
		m.states[d] = model.SignalRed
	}
	return m
}

func (m *Memory) SetDirectionState(dir model.Direction, state model.SignalState) error {
	m.mu.Lock()
	m.states[dir] = state
	m.mu.Unlock()
	return nil
}

func (m *Memory) SetAll(state model.SignalState) error {
	m.mu.Lock()
	for _, d := range model.AllDirections() {
		m.states[d] = state
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) States() map[model.Direction]model.SignalState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.Direction]model.SignalState, len(m.states))
	for d, s := range m.states {
		out[d] = s
	}
	return out
}

func (m *Memory) Close() error {
	return nil
}
