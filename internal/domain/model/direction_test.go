package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "NORTH", DirectionNorth.String())
	assert.Equal(t, "WEST", DirectionWest.String())
}

func TestAllDirectionsOrder(t *testing.T) {
	assert.Equal(t, []Direction{DirectionNorth, DirectionEast, DirectionSouth, DirectionWest}, AllDirections())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("SOUTH")
	require.NoError(t, err)
	assert.Equal(t, DirectionSouth, d)

	_, err = ParseDirection("UP")
	assert.Error(t, err)

	_, err = ParseDirection("north")
	assert.Error(t, err, "directions are case sensitive")
}

func TestParseSignalState(t *testing.T) {
	s, err := ParseSignalState("RED_YELLOW")
	require.NoError(t, err)
	assert.Equal(t, SignalRedYellow, s)

	_, err = ParseSignalState("BLUE")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("AUTO")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("TURBO")
	assert.Error(t, err)
}

func TestCountsFromMap(t *testing.T) {
	s := CountsFromMap(testTime(), map[Direction]int{
		DirectionNorth: 3,
		DirectionWest:  2,
	})
	assert.Equal(t, 3, s.North)
	assert.Equal(t, 0, s.East)
	assert.Equal(t, 0, s.South)
	assert.Equal(t, 2, s.West)
	assert.Equal(t, 5, s.Total)
}
