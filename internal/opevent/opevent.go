// Package opevent collects a rolling history of patch-lifecycle
// operations for display in a CLI status view. It hangs off
// ulog.Logger's SetOnEvent callback rather than duplicating any of the
// phase logging ulog already does; its only job is retaining and
// categorizing recent events for a UI to render, not writing them
// anywhere durable.
//
// Adapted from the teacher's internal/trace/types.go Tag/Tags/Event/
// Enricher pattern, generalized from Android hook-site categories
// (jni-call, malloc, xor-neon, ...) to patch-lifecycle phases (attach,
// detach, syscall, parse, stage, resolve, relocate, install, remove,
// register); ulog.Logger's helper methods emit attach, detach, syscall,
// relocate and install.
package opevent

import "time"

// Phase is an operation category. Stored without a # prefix; the
// prefix is added on rendering, matching the teacher's Tag convention.
type Phase string

const (
	Attach   Phase = "attach"
	Detach   Phase = "detach"
	Syscall  Phase = "syscall"
	Parse    Phase = "parse"
	Stage    Phase = "stage"
	Resolve  Phase = "resolve"
	Relocate Phase = "relocate"
	Install  Phase = "install"
	Remove   Phase = "remove"
	Register Phase = "register"
)

// Annotations holds key-value metadata attached to an event.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) { a[k] = v }

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string { return a[k] }

// Event is one recorded operation against a target PID.
type Event struct {
	PID         int
	Phase       Phase
	Detail      string
	Annotations Annotations
	Timestamp   time.Time
}

// PhaseTag returns the phase with a # prefix, for display.
func (e *Event) PhaseTag() string {
	return "#" + string(e.Phase)
}

// Annotate sets an annotation, allocating the map if needed.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(k, v)
}

// Enricher adds derived annotations to an event based on its phase and
// detail. Enrichers run in New before the event is appended to a History.
type Enricher func(e *Event)

// DefaultEnricher tags a handful of well-known detail shapes: a syscall
// event's Detail is the syscall name, an install event's Detail is the
// hex call-site address ulog.Logger.Install already formats.
func DefaultEnricher(e *Event) {
	switch e.Phase {
	case Syscall:
		e.Annotate("syscall", e.Detail)
	case Install:
		e.Annotate("call_site", e.Detail)
	case Relocate:
		e.Annotate("symbol", e.Detail)
	}
}

// New builds an Event stamped with time.Now() and applies the given
// enrichers to it in order.
func New(pid int, phase Phase, detail string, enrichers ...Enricher) *Event {
	e := &Event{
		PID:       pid,
		Phase:     phase,
		Detail:    detail,
		Timestamp: time.Now(),
	}
	for _, enrich := range enrichers {
		enrich(e)
	}
	return e
}
