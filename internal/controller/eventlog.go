package controller

import (
	"sync"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"github.com/google/uuid"
)

const eventLogCapacity = 1000

// eventLog is a bounded append-only ring. When full, the oldest entry is
// evicted. It carries its own lock so readers never contend with the
// scheduler's primary mutex.
type eventLog struct {
	mu      sync.Mutex
	entries [eventLogCapacity]model.EventLogEntry
	head    int
	size    int
}

func (l *eventLog) append(ts time.Time, category model.EventCategory, dir model.Direction, message string) model.EventLogEntry {
	entry := model.EventLogEntry{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Category:  category,
		Direction: dir,
		Message:   message,
	}

	l.mu.Lock()
	idx := (l.head + l.size) % eventLogCapacity
	l.entries[idx] = entry
	if l.size < eventLogCapacity {
		l.size++
	} else {
		l.head = (l.head + 1) % eventLogCapacity
	}
	l.mu.Unlock()

	return entry
}

// recent returns up to limit entries in chronological order, newest last.
// limit <= 0 returns everything retained.
func (l *eventLog) recent(limit int) []model.EventLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.EventLogEntry, 0, n)
	start := l.size - n
	for i := start; i < l.size; i++ {
		out = append(out, l.entries[(l.head+i)%eventLogCapacity])
	}
	return out
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}
