package controller

import (
	"sort"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// demandSnapshot is the per-direction input to the scoring and green-time
// formulas, captured under the lock at a round boundary.
type demandSnapshot struct {
	Vehicles          int
	WaitSeconds       float64
	WaitingCycles     int
	ArrivalRate       float64 // vehicles per second over the sample window
	PedestrianPending bool
	PedestrianWait    float64
}

func (d demandSnapshot) hasDemand() bool {
	return d.Vehicles > 0 || d.PedestrianPending
}

// computeScore ranks one direction's urgency. Higher wins. A zero score with
// a pedestrian at max wait yields to the forced-crossing path, which selects
// that direction before scores are consulted.
func computeScore(dir model.Direction, dem demandSnapshot, s Settings) float64 {
	rate := dem.ArrivalRate
	if rate > 2 {
		rate = 2
	}

	score := float64(dem.Vehicles)*10 +
		(dem.WaitSeconds/10)*s.WaitingBonusWeight +
		float64(dem.WaitingCycles)*10 +
		rate*5

	if s.PriorityLaneEnabled && dir == s.PriorityLaneDirection && dem.Vehicles >= s.PriorityLaneMinVehicles {
		score *= s.PriorityLaneMultiplier
	}

	if dem.PedestrianPending {
		switch {
		case dem.PedestrianWait >= s.PedestrianMaxWait:
			score = 0
		case dem.PedestrianWait < s.PedestrianMinWait:
			// Cars keep priority until the pedestrian min-wait elapses.
			score += s.CarFavorPenalty
		}
	}

	return score
}

type scoredDirection struct {
	Direction model.Direction
	Score     float64
	Demand    demandSnapshot
}

// rankDirections scores every approach and sorts best-first. Ties are broken
// by the fixed enum order, so the result is deterministic.
func rankDirections(demands map[model.Direction]demandSnapshot, s Settings) []scoredDirection {
	order := model.AllDirections()
	ranked := make([]scoredDirection, 0, len(order))
	for _, dir := range order {
		ranked = append(ranked, scoredDirection{
			Direction: dir,
			Score:     computeScore(dir, demands[dir], s),
			Demand:    demands[dir],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
