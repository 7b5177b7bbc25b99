//go:build linux

// Package ptrace drives another process via ptrace(2): attach, wait for a
// quiescent stop, save/restore its general-purpose registers, and detach.
// It is the lowest layer that ever touches the tracee's execution state;
// internal/rsyscall builds remote syscalls on top of it, and
// internal/memio's PTRACE_PEEKDATA/POKEDATA fallback shares its fd-less
// model (every ptrace(2) call addresses the tracee by pid, no open handle
// to leak). Grounded on the attach/wait/detach loop shape used throughout
// the pack's gVisor ptrace platform code.
package ptrace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// State is the ptrace attach state machine from the design notes:
// Detached -> Attached -> SyscallStaged -> SyscallStopped -> Attached -> Detached.
type State int

const (
	Detached State = iota
	Attached
	SyscallStaged
	SyscallStopped
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attached:
		return "attached"
	case SyscallStaged:
		return "syscall-staged"
	case SyscallStopped:
		return "syscall-stopped"
	default:
		return "unknown"
	}
}

// Control is one attached tracee under this process's control.
type Control struct {
	PID   int
	state State
}

// Attach issues PTRACE_ATTACH and blocks until the tracee is quiescent on
// SIGSTOP, transparently re-delivering any SIGTRAP caused by an execve race
// (PTRACE_ATTACH on a thread mid-exec can surface one before the SIGSTOP).
func Attach(pid int) (*Control, error) {
	if err := unix.PtraceAttach(pid); err != nil {
		return nil, fmt.Errorf("ptrace attach %d: %w", pid, err)
	}

	c := &Control{PID: pid, state: Attached}

	for {
		var status unix.WaitStatus
		_, err := unix.Wait4(pid, &status, unix.WALL, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ptrace attach %d: wait: %w", pid, err)
		}
		if !status.Stopped() {
			return nil, fmt.Errorf("ptrace attach %d: unexpected wait status %v", pid, status)
		}
		switch status.StopSignal() {
		case unix.SIGSTOP:
			return c, nil
		case unix.SIGTRAP:
			// Execve-race artifact: let it run and wait again for the real SIGSTOP.
			if err := unix.PtraceCont(pid, 0); err != nil {
				return nil, fmt.Errorf("ptrace attach %d: cont past SIGTRAP: %w", pid, err)
			}
			continue
		default:
			return nil, fmt.Errorf("ptrace attach %d: unexpected stop signal %v", pid, status.StopSignal())
		}
	}
}

// Detach issues PTRACE_DETACH. Idempotent only up to once per successful
// Attach; calling it again returns an error rather than silently no-oping,
// since a second detach on an already-detached tracee is a caller bug.
func (c *Control) Detach() error {
	if c.state == Detached {
		return fmt.Errorf("ptrace detach %d: already detached", c.PID)
	}
	if err := unix.PtraceDetach(c.PID); err != nil {
		return fmt.Errorf("ptrace detach %d: %w", c.PID, err)
	}
	c.state = Detached
	return nil
}

// WaitForStop resumes the tracee with PTRACE_SINGLESTEP and blocks until it
// stops again on SIGSTOP or SIGTRAP (the expected outcome of single-stepping
// a spliced syscall instruction). A SIGSEGV is fatal: the caller must restore
// the tracee's original bytes/registers before surfacing the error, since
// the tracee is left stopped mid-fault.
func (c *Control) WaitForStop() error {
	if err := unix.PtraceSingleStep(c.PID); err != nil {
		return fmt.Errorf("ptrace wait %d: single-step: %w", c.PID, err)
	}
	for {
		var status unix.WaitStatus
		_, err := unix.Wait4(c.PID, &status, unix.WALL, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("ptrace wait %d: %w", c.PID, err)
		}
		if !status.Stopped() {
			return fmt.Errorf("ptrace wait %d: tracee is no longer stopped (status %v)", c.PID, status)
		}
		switch status.StopSignal() {
		case unix.SIGSTOP, unix.SIGTRAP:
			return nil
		case unix.SIGSEGV:
			return fmt.Errorf("ptrace wait %d: tracee faulted with SIGSEGV mid-splice", c.PID)
		default:
			return fmt.Errorf("ptrace wait %d: unexpected stop signal %v", c.PID, status.StopSignal())
		}
	}
}

// State reports the current point in the attach state machine.
func (c *Control) State() State { return c.state }

// SetState advances the state machine. No package calls it, so a Control
// reports Attached from Attach until Detach.
func (c *Control) SetState(s State) { c.state = s }
