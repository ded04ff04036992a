package controller

import "time"

const arrivalWindowSize = 20

type countSample struct {
	at    time.Time
	count int
}

// arrivalWindow is a fixed-capacity ring of (timestamp, count) samples used
// to estimate the vehicle arrival rate for one approach. Counts come from the
// detection feed, which overwrites wholesale; only positive deltas between
// consecutive samples count as arrivals.
type arrivalWindow struct {
	samples [arrivalWindowSize]countSample
	head    int
	size    int
}

func (w *arrivalWindow) push(at time.Time, count int) {
	idx := (w.head + w.size) % arrivalWindowSize
	w.samples[idx] = countSample{at: at, count: count}
	if w.size < arrivalWindowSize {
		w.size++
	} else {
		w.head = (w.head + 1) % arrivalWindowSize
	}
}

func (w *arrivalWindow) at(i int) countSample {
	return w.samples[(w.head+i)%arrivalWindowSize]
}

// rate returns estimated arrivals per second over the window, 0 when the
// window is too small to tell.
func (w *arrivalWindow) rate() float64 {
	if w.size < 2 {
		return 0
	}
	first := w.at(0)
	last := w.at(w.size - 1)
	span := last.at.Sub(first.at).Seconds()
	if span <= 0 {
		return 0
	}

	arrivals := 0
	for i := 1; i < w.size; i++ {
		delta := w.at(i).count - w.at(i-1).count
		if delta > 0 {
			arrivals += delta
		}
	}
	return float64(arrivals) / span
}

func (w *arrivalWindow) reset() {
	w.head = 0
	w.size = 0
}
