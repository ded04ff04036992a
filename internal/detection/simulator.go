// Package detection feeds vehicle counts into the controller. The real
// detector is a camera pipeline outside this repository; the simulator
// stands in for it during development and load testing, pushing synthetic
// counts at frame-ish rate with occasional pedestrian and emergency events.
package detection

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/controller"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
)

// Sink is the controller surface the feed pushes into.
type Sink interface {
	UpdateVehicleCounts(counts map[model.Direction]int, emergency *controller.EmergencyInfo)
	RequestPedestrianCrossing(dir model.Direction) (controller.PedestrianAck, error)
}

// Simulator generates per-direction queue lengths with a random walk:
// arrivals are Poisson-ish, and a direction holding green drains. Roughly
// one frame in 200 carries a pedestrian request, one in 500 an emergency.
type Simulator struct {
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	rng      *rand.Rand

	counts map[model.Direction]int
	greens func() map[model.Direction]model.SignalState
}

// NewSimulator builds a feed pushing into sink every interval. seed of 0
// picks a time-based seed; greens may be nil (no drain modeling).
func NewSimulator(sink Sink, greens func() map[model.Direction]model.SignalState, interval time.Duration, seed int64, logger *slog.Logger) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulator{
		sink:     sink,
		logger:   logger.With("component", "simulator"),
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		counts:   make(map[model.Direction]int, 4),
		greens:   greens,
	}
	for _, d := range model.AllDirections() {
		s.counts[d] = s.rng.Intn(4)
	}
	return s
}

// Run pushes frames until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("detection simulator started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("detection simulator stopped")
			return ctx.Err()
		case <-ticker.C:
			s.step()
		}
	}
}

func (s *Simulator) step() {
	frame := s.nextFrame()

	var emergency *controller.EmergencyInfo
	if s.rng.Intn(500) == 0 {
		emergency = &controller.EmergencyInfo{
			Detected:  true,
			Direction: s.randomDirection(),
		}
		s.logger.Info("simulated emergency vehicle", "direction", emergency.Direction)
	}

	s.sink.UpdateVehicleCounts(frame, emergency)

	if s.rng.Intn(200) == 0 {
		dir := s.randomDirection()
		if _, err := s.sink.RequestPedestrianCrossing(dir); err == nil {
			s.logger.Info("simulated pedestrian request", "direction", dir)
		}
	}
}

// nextFrame advances the random walk and returns a fresh count map. Counts
// never go negative and are capped to keep scores in a realistic band.
func (s *Simulator) nextFrame() map[model.Direction]int {
	var live map[model.Direction]model.SignalState
	if s.greens != nil {
		live = s.greens()
	}

	frame := make(map[model.Direction]int, 4)
	for _, d := range model.AllDirections() {
		n := s.counts[d]

		// Arrivals: 0-2 vehicles per frame, weighted toward zero.
		if r := s.rng.Intn(10); r < 3 {
			n++
		} else if r == 3 {
			n += 2
		}

		// A green approach drains faster than it fills.
		if live != nil && live[d] == model.SignalGreen {
			n -= 1 + s.rng.Intn(3)
		}

		if n < 0 {
			n = 0
		}
		if n > 30 {
			n = 30
		}
		s.counts[d] = n
		frame[d] = n
	}
	return frame
}

func (s *Simulator) randomDirection() model.Direction {
	dirs := model.AllDirections()
	return dirs[s.rng.Intn(len(dirs))]
}
