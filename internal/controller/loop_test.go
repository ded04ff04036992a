package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// recordingDriver captures every head command in order so tests can assert
// the transition protocol's sequencing.
type recordingDriver struct {
	mu     sync.Mutex
	cmds   []string
	states map[model.Direction]model.SignalState
}

func newRecordingDriver() *recordingDriver {
	r := &recordingDriver{states: make(map[model.Direction]model.SignalState, 4)}
	for _, d := range model.AllDirections() {
		r.states[d] = model.SignalRed
	}
	return r
}

func (r *recordingDriver) SetDirectionState(dir model.Direction, state model.SignalState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, fmt.Sprintf("%s=%s", dir, state))
	r.states[dir] = state
	return nil
}

func (r *recordingDriver) SetAll(state model.SignalState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, "ALL="+string(state))
	for _, d := range model.AllDirections() {
		r.states[d] = state
	}
	return nil
}

func (r *recordingDriver) States() map[model.Direction]model.SignalState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.Direction]model.SignalState, len(r.states))
	for d, s := range r.states {
		out[d] = s
	}
	return out
}

func (r *recordingDriver) Close() error { return nil }

func (r *recordingDriver) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.cmds))
	copy(out, r.cmds)
	return out
}

func indexOf(cmds []string, want string) int {
	for i, c := range cmds {
		if c == want {
			return i
		}
	}
	return -1
}

func TestRunRound_SelectsHighestDemand(t *testing.T) {
	c, _, drv := newTestController(t, testSettings())

	c.UpdateVehicleCounts(map[model.Direction]int{
		model.DirectionNorth: 5,
		model.DirectionEast:  1,
	}, nil)
	c.runRound(context.Background())

	states := drv.States()
	assert.Equal(t, model.SignalGreen, states[model.DirectionNorth])
	assertSingleGreen(t, states)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 0, c.waitingCycles[model.DirectionNorth], "served direction resets its waiting cycles")
	assert.Equal(t, 1, c.waitingCycles[model.DirectionEast])
	assert.Equal(t, 1, c.waitingCycles[model.DirectionSouth])
	assert.Equal(t, 1, c.waitingCycles[model.DirectionWest])
}

func TestRunRound_StarvationBound(t *testing.T) {
	c, _, _ := newTestController(t, testSettings())

	// NORTH dominates every round; EAST has unmet demand throughout.
	c.UpdateVehicleCounts(map[model.Direction]int{
		model.DirectionNorth: 9,
		model.DirectionEast:  1,
	}, nil)

	last := 0
	for i := 0; i < 3; i++ {
		c.runRound(context.Background())
		c.mu.Lock()
		winnerCycles := c.waitingCycles[c.currentGreen]
		eastCycles := c.waitingCycles[model.DirectionEast]
		c.mu.Unlock()

		if c.Status().CurrentGreen == model.DirectionEast {
			assert.Zero(t, eastCycles, "selection must reset the waiting-cycle count")
			return
		}
		assert.Zero(t, winnerCycles)
		assert.Greater(t, eastCycles, last, "a skipped direction's waiting cycles must strictly increase")
		last = eastCycles
	}
}

func TestRunRound_ZeroDemandSkipsAccounting(t *testing.T) {
	c, clock, drv := newTestController(t, testSettings())

	before := clock.Now()
	c.runRound(context.Background())

	c.mu.Lock()
	for _, d := range model.AllDirections() {
		assert.Zero(t, c.waitingCycles[d], "an idle round must not advance waiting cycles")
	}
	c.mu.Unlock()
	for _, s := range drv.States() {
		assert.Equal(t, model.SignalRed, s)
	}
	assert.Zero(t, c.Stats().CycleCount)
	assert.Equal(t, pollTick, clock.Now().Sub(before), "idle rounds poll one tick")
}

func TestRunRound_FallsThroughToRealDemand(t *testing.T) {
	c, _, drv := newTestController(t, testSettings())

	// NORTH has the top score from accumulated cycles but no demand;
	// EAST has an actual vehicle.
	c.mu.Lock()
	c.waitingCycles[model.DirectionNorth] = 5
	c.mu.Unlock()
	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionEast: 1}, nil)

	c.runRound(context.Background())

	assert.Equal(t, model.SignalGreen, drv.States()[model.DirectionEast])
	assert.Equal(t, model.SignalRed, drv.States()[model.DirectionNorth])
}

func TestRunRound_ForcedPedestrianOverridesScore(t *testing.T) {
	c, clock, drv := newTestController(t, testSettings())

	// Heavy vehicle demand on NORTH, but EAST's pedestrian has waited past
	// the maximum.
	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionNorth: 9}, nil)
	maxWait := time.Duration(testSettings().PedestrianMaxWait * float64(time.Second))
	c.mu.Lock()
	c.ped[model.DirectionEast].pending = true
	c.ped[model.DirectionEast].waitStart = clock.Now().Add(-maxWait)
	c.mu.Unlock()

	c.runRound(context.Background())

	assert.Equal(t, model.SignalGreen, drv.States()[model.DirectionEast],
		"a pedestrian at max wait preempts score order")

	c.mu.Lock()
	east := c.ped[model.DirectionEast]
	served, pending, lastServed := east.served, east.pending, east.lastServed
	c.mu.Unlock()
	assert.False(t, pending, "the crossing must be cleared after serving")
	assert.Equal(t, int64(1), served)
	assert.False(t, lastServed.IsZero())
}

func TestTransitionProtocol_Ordering(t *testing.T) {
	drv := newRecordingDriver()
	c := New(testSettings(), Deps{Driver: drv}, testLogger())
	hookClock(c)

	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionNorth: 5}, nil)
	c.runRound(context.Background())
	require.Equal(t, model.SignalGreen, drv.States()[model.DirectionNorth])

	// Shift all demand to EAST and let the next round hand the green over.
	c.UpdateVehicleCounts(map[model.Direction]int{
		model.DirectionNorth: 0,
		model.DirectionEast:  4,
	}, nil)
	c.runRound(context.Background())

	cmds := drv.commands()
	yellow := indexOf(cmds, "NORTH=YELLOW")
	red := indexOf(cmds, "NORTH=RED")
	redYellow := indexOf(cmds, "EAST=RED_YELLOW")
	green := indexOf(cmds, "EAST=GREEN")

	require.NotEqual(t, -1, yellow, "commands: %v", cmds)
	require.NotEqual(t, -1, red, "commands: %v", cmds)
	require.NotEqual(t, -1, redYellow, "commands: %v", cmds)
	require.NotEqual(t, -1, green, "commands: %v", cmds)

	assert.Less(t, yellow, red, "outgoing YELLOW precedes its RED")
	assert.Less(t, red, redYellow, "incoming RED_YELLOW waits for the outgoing RED")
	assert.Less(t, redYellow, green, "GREEN is the final step")
	assertSingleGreen(t, drv.States())
}

func TestTransitionProtocol_SkipsWhenWinnerHoldsGreen(t *testing.T) {
	drv := newRecordingDriver()
	c := New(testSettings(), Deps{Driver: drv}, testLogger())
	hookClock(c)

	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionNorth: 3}, nil)
	c.runRound(context.Background())
	first := len(drv.commands())

	// Same winner again: green extends without re-running the protocol.
	c.runRound(context.Background())
	cmds := drv.commands()[first:]
	assert.NotContains(t, cmds, "NORTH=YELLOW", "re-selected direction must keep its green, got %v", cmds)
	assert.Equal(t, model.SignalGreen, drv.States()[model.DirectionNorth])
}

func TestHoldGreen_PedestrianInterruptAfterMinGreen(t *testing.T) {
	c, clock, _ := newTestController(t, testSettings())

	// NORTH wins on vehicles; EAST's fresh pedestrian request should cut
	// the 30s hold at the 10s minimum-green floor.
	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionNorth: 5}, nil)
	c.mu.Lock()
	c.ped[model.DirectionEast].pending = true
	c.ped[model.DirectionEast].waitStart = clock.Now()
	c.mu.Unlock()

	start := clock.Now()
	c.runRound(context.Background())
	elapsed := clock.Now().Sub(start).Seconds()

	// Transition (1.5s) plus an interrupted hold (~10s) stays well under
	// the full 30s green.
	assert.Less(t, elapsed, 20.0, "pedestrian interrupt must shorten the hold")
	assert.GreaterOrEqual(t, elapsed, testSettings().MinGreen, "the interrupt honors the minimum green floor")

	c.mu.Lock()
	pending := c.ped[model.DirectionEast].pending
	c.mu.Unlock()
	assert.True(t, pending, "the interrupting request is served by a later round, not this one")
}

func TestHoldGreen_ServingCrossingIgnoresInterrupts(t *testing.T) {
	c, clock, _ := newTestController(t, testSettings())

	// EAST is served as a forced crossing while WEST's pedestrian queues
	// up; the walk phase must still run its full length.
	maxWait := time.Duration(testSettings().PedestrianMaxWait * float64(time.Second))
	c.mu.Lock()
	c.ped[model.DirectionEast].pending = true
	c.ped[model.DirectionEast].waitStart = clock.Now().Add(-maxWait)
	c.ped[model.DirectionWest].pending = true
	c.ped[model.DirectionWest].waitStart = clock.Now()
	c.mu.Unlock()

	start := clock.Now()
	c.runRound(context.Background())
	elapsed := clock.Now().Sub(start).Seconds()

	assert.GreaterOrEqual(t, elapsed, testSettings().PedestrianGreen,
		"a serving hold runs the full pedestrian green")

	c.mu.Lock()
	served := c.ped[model.DirectionEast].served
	c.mu.Unlock()
	assert.Equal(t, int64(1), served)
}

func TestSelectWinner_TieBreaksByEnumOrder(t *testing.T) {
	s := testSettings()
	demands := map[model.Direction]demandSnapshot{
		model.DirectionNorth: {},
		model.DirectionEast:  {Vehicles: 2},
		model.DirectionSouth: {},
		model.DirectionWest:  {Vehicles: 2},
	}

	winner, cause, ok := selectWinner(demands, s)
	require.True(t, ok)
	assert.Equal(t, "score", cause)
	assert.Equal(t, model.DirectionEast, winner, "EAST precedes WEST in enum order on equal scores")
}

func TestSelectWinner_IdleIntersection(t *testing.T) {
	demands := map[model.Direction]demandSnapshot{
		model.DirectionNorth: {},
		model.DirectionEast:  {},
		model.DirectionSouth: {},
		model.DirectionWest:  {},
	}
	_, _, ok := selectWinner(demands, testSettings())
	assert.False(t, ok)
}

func TestRun_StopsOnCancelAndForcesRed(t *testing.T) {
	c, _, drv := newTestController(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionNorth: 2}, nil)
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.NoError(t, c.Close(2*time.Second), "the loop must exit within the shutdown budget")

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	for d, s := range drv.States() {
		assert.Equal(t, model.SignalRed, s, "direction %s must be RED after shutdown", d)
	}
}

func TestIterate_RecoversFromPanic(t *testing.T) {
	c, _, _ := newTestController(t, testSettings())

	// A nil driver makes the round panic when it commands a head.
	c.driver = nil
	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionNorth: 1}, nil)

	assert.NotPanics(t, func() { c.iterate(context.Background()) })
}
