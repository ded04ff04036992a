package model

import "fmt"

// Direction is one of the four fixed compass approaches to the intersection.
// The set is closed; it is never extended at runtime.
type Direction string

const (
	DirectionNorth Direction = "NORTH"
	DirectionEast  Direction = "EAST"
	DirectionSouth Direction = "SOUTH"
	DirectionWest  Direction = "WEST"
)

func (d Direction) String() string {
	return string(d)
}

// AllDirections returns the four approaches in their fixed order. The order
// doubles as the deterministic tie-break when priority scores are equal.
func AllDirections() []Direction {
	return []Direction{DirectionNorth, DirectionEast, DirectionSouth, DirectionWest}
}

var validDirections = map[Direction]struct{}{
	DirectionNorth: {},
	DirectionEast:  {},
	DirectionSouth: {},
	DirectionWest:  {},
}

// IsValid reports whether d is one of the four known approaches.
func (d Direction) IsValid() bool {
	_, ok := validDirections[d]
	return ok
}

// ParseDirection validates a raw direction string from an external caller.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.IsValid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}
