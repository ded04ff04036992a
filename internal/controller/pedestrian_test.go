package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

func TestRequestPedestrianCrossing_InvalidDirection(t *testing.T) {
	c, _, _ := newTestController(t, testSettings())

	_, err := c.RequestPedestrianCrossing(model.Direction("DIAGONAL"))
	assert.Error(t, err)
}

func TestRequestPedestrianCrossing_AckFields(t *testing.T) {
	c, clock, _ := newTestController(t, testSettings())

	ack, err := c.RequestPedestrianCrossing(model.DirectionWest)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionWest, ack.Direction)
	assert.Equal(t, clock.Now(), ack.WaitingSince)
}

func TestRequestPedestrianCrossing_EstimateClampedToWaitWindow(t *testing.T) {
	c, _, _ := newTestController(t, testSettings())
	s := testSettings()

	// An empty approach still promises at least the minimum wait.
	ack, err := c.RequestPedestrianCrossing(model.DirectionNorth)
	require.NoError(t, err)
	assert.Equal(t, s.PedestrianMinWait, ack.EstimatedWaitSeconds)

	// A saturated approach cannot promise more than the maximum.
	c.UpdateVehicleCounts(map[model.Direction]int{model.DirectionEast: 50}, nil)
	ack, err = c.RequestPedestrianCrossing(model.DirectionEast)
	require.NoError(t, err)
	assert.Equal(t, s.PedestrianMaxWait, ack.EstimatedWaitSeconds)
}

func TestRequestPedestrianCrossing_DuplicateKeepsWaitStart(t *testing.T) {
	c, clock, _ := newTestController(t, testSettings())

	first, err := c.RequestPedestrianCrossing(model.DirectionSouth)
	require.NoError(t, err)

	clock.Advance(8 * time.Second)
	second, err := c.RequestPedestrianCrossing(model.DirectionSouth)
	require.NoError(t, err)
	assert.Equal(t, first.WaitingSince, second.WaitingSince,
		"a repeated press must not restart the wait clock")
}

func TestRequestPedestrianCrossing_CooldownRejection(t *testing.T) {
	c, clock, _ := newTestController(t, testSettings())
	s := testSettings()

	_, err := c.RequestPedestrianCrossing(model.DirectionEast)
	require.NoError(t, err)
	c.finishPedestrian(model.DirectionEast, clock.Now())

	clock.Advance(10 * time.Second)
	_, err = c.RequestPedestrianCrossing(model.DirectionEast)
	var cErr *CooldownError
	require.ErrorAs(t, err, &cErr)
	assert.InDelta(t, s.PedestrianCooldown-10, cErr.Remaining.Seconds(), 0.1)

	// Cooldown is per direction.
	_, err = c.RequestPedestrianCrossing(model.DirectionWest)
	assert.NoError(t, err)

	// Past the window the approach accepts again.
	clock.Advance(time.Duration(s.PedestrianCooldown) * time.Second)
	_, err = c.RequestPedestrianCrossing(model.DirectionEast)
	assert.NoError(t, err)
}

func TestFinishPedestrian_NoopWithoutPending(t *testing.T) {
	c, clock, _ := newTestController(t, testSettings())

	c.finishPedestrian(model.DirectionNorth, clock.Now())

	c.mu.Lock()
	p := c.ped[model.DirectionNorth]
	served, lastServed := p.served, p.lastServed
	c.mu.Unlock()
	assert.Zero(t, served)
	assert.True(t, lastServed.IsZero(), "a no-op finish must not arm the cooldown")
}

func TestFinishPedestrian_ClosesOutCrossing(t *testing.T) {
	c, clock, _ := newTestController(t, testSettings())

	_, err := c.RequestPedestrianCrossing(model.DirectionNorth)
	require.NoError(t, err)
	clock.Advance(5 * time.Second)
	c.finishPedestrian(model.DirectionNorth, clock.Now())

	c.mu.Lock()
	p := c.ped[model.DirectionNorth]
	pending, served, waitStart := p.pending, p.served, p.waitStart
	c.mu.Unlock()
	assert.False(t, pending)
	assert.Equal(t, int64(1), served)
	assert.True(t, waitStart.IsZero())
	assert.Equal(t, int64(1), c.Stats().PedestriansServed)
}
