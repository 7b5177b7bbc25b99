package opevent

import "sync"

// History is a fixed-capacity ring buffer of recent events, safe for
// concurrent use since it's fed from ulog's callback (which may fire
// from whatever goroutine issued the operation) and read from a UI
// goroutine concurrently.
type History struct {
	mu        sync.Mutex
	cap       int
	events    []*Event
	start     int
	enrichers []Enricher
}

// NewHistory creates a History retaining at most capacity events,
// oldest dropped first. capacity <= 0 is treated as 1.
func NewHistory(capacity int, enrichers ...Enricher) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{cap: capacity, enrichers: enrichers}
}

// ListenFunc returns a callback in the shape ulog.Logger.SetOnEvent
// expects, recording every phase log as an Event.
func (h *History) ListenFunc() func(pid int, phase, detail string) {
	return func(pid int, phase, detail string) {
		h.Record(pid, Phase(phase), detail)
	}
}

// Record appends a new event, evicting the oldest if at capacity.
func (h *History) Record(pid int, phase Phase, detail string) {
	e := New(pid, phase, detail, h.enrichers...)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) < h.cap {
		h.events = append(h.events, e)
		return
	}
	h.events[h.start] = e
	h.start = (h.start + 1) % h.cap
}

// Recent returns up to n most recent events, newest last.
func (h *History) Recent(n int) []*Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := len(h.events)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]*Event, 0, n)
	if total < h.cap {
		// Not yet wrapped: events is already in chronological order.
		out = append(out, h.events[total-n:]...)
		return out
	}
	for i := 0; i < n; i++ {
		idx := (h.start + total - n + i) % h.cap
		out = append(out, h.events[idx])
	}
	return out
}

// ForPID filters Recent(0) (everything retained) down to one PID.
func (h *History) ForPID(pid int) []*Event {
	all := h.Recent(0)
	out := make([]*Event, 0, len(all))
	for _, e := range all {
		if e.PID == pid {
			out = append(out, e)
		}
	}
	return out
}
