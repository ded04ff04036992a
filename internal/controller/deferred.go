package controller

import (
	"sync"
	"time"
)

// deferredEvent is a one-shot "at time T, apply E" entry. The fire callback
// runs on the control loop goroutine, takes the locks it needs, and must
// re-validate the state it expects before mutating: a new detection or mode
// change may have moved the world on while the event was pending. fire
// returns false when it found stale state and did nothing.
type deferredEvent struct {
	name string
	at   time.Time
	fire func(now time.Time) bool
}

// deferredQueue holds pending one-shot events in fire order. It has its own
// lock so callers can schedule from API goroutines while the loop holds the
// primary mutex; only the control loop pops and fires.
type deferredQueue struct {
	mu     sync.Mutex
	events []deferredEvent
}

func (q *deferredQueue) schedule(name string, at time.Time, fire func(time.Time) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := len(q.events)
	for i, ev := range q.events {
		if at.Before(ev.at) {
			idx = i
			break
		}
	}
	q.events = append(q.events, deferredEvent{})
	copy(q.events[idx+1:], q.events[idx:])
	q.events[idx] = deferredEvent{name: name, at: at, fire: fire}
}

// popDue removes and returns every event due at now, in fire order.
func (q *deferredQueue) popDue(now time.Time) []deferredEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(q.events) && !q.events[n].at.After(now) {
		n++
	}
	if n == 0 {
		return nil
	}
	due := make([]deferredEvent, n)
	copy(due, q.events[:n])
	q.events = q.events[:copy(q.events, q.events[n:])]
	return due
}

// cancel removes all pending events with the given name and reports whether
// any were removed.
func (q *deferredQueue) cancel(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.events[:0]
	removed := false
	for _, ev := range q.events {
		if ev.name == name {
			removed = true
			continue
		}
		kept = append(kept, ev)
	}
	q.events = kept
	return removed
}

func (q *deferredQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
