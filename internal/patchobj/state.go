package patchobj

import "fmt"

// State is a patch's position in the lifecycle spec §4.H names:
// UNLOADED -> PARSED -> STAGED -> RELOCATED -> ACTIVE -> (DETACHING) ->
// UNLOADED. PARSED/STAGED/RELOCATED are produced by this package
// (internal/patchobj); ACTIVE/DETACHING are set by internal/task's
// LoadPatch and RemovePatch around internal/install's calls on the same
// *LoadInfo.
type State int

const (
	Unloaded State = iota
	Parsed
	Staged
	Relocated
	Active
	Detaching
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Parsed:
		return "parsed"
	case Staged:
		return "staged"
	case Relocated:
		return "relocated"
	case Active:
		return "active"
	case Detaching:
		return "detaching"
	default:
		return "unknown"
	}
}

// legalNext enumerates the transitions spec §4.H describes as the success
// path (UNLOADED->PARSED->STAGED->RELOCATED->ACTIVE) plus the two abort
// paths back to UNLOADED (STAGED/RELOCATED failure-unwind) and the
// removal path (ACTIVE->DETACHING->UNLOADED).
var legalNext = map[State]map[State]bool{
	Unloaded:  {Parsed: true},
	Parsed:    {Staged: true},
	Staged:    {Relocated: true, Unloaded: true},
	Relocated: {Active: true, Unloaded: true},
	Active:    {Detaching: true},
	Detaching: {Unloaded: true},
}

// Transition moves from to next, or returns an error naming the illegal
// jump. Callers are expected to call this on every state change so a bug
// that skips a step (e.g. installing a branch before relocations are
// applied) fails loudly instead of corrupting the target.
func Transition(from, next State) error {
	if legalNext[from][next] {
		return nil
	}
	return fmt.Errorf("patchobj: illegal transition %s -> %s", from, next)
}
