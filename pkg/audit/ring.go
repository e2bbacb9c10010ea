package audit

import (
	"context"
	"sync"
	"time"
)

// DefaultRingSize is the number of events kept in memory by default.
const DefaultRingSize = 10000

// RingBuffer keeps the latest events in memory for the query API.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewRingBuffer creates a RingBuffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = DefaultRingSize
	}
	return &RingBuffer{events: make([]Event, size)}
}

func (r *RingBuffer) Name() string { return "ring" }

// Handle stores e, overwriting the oldest event when full.
func (r *RingBuffer) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = e
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Since returns the events with a timestamp at or after t, oldest first.
func (r *RingBuffer) Since(t time.Time) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ordered []Event
	if r.full {
		ordered = append(ordered, r.events[r.next:]...)
	}
	ordered = append(ordered, r.events[:r.next]...)

	out := make([]Event, 0, len(ordered))
	for _, e := range ordered {
		if !e.Timestamp.Before(t) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of events held.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.events)
	}
	return r.next
}
