package coop

import (
	"sync/atomic"
)

// CooperatorState is the lifecycle state of a Cooperator.
//
//	StateAwake (0) → StateRunning (3)       [Run()]
//	StateAwake (0) → StateTerminating (4)   [Shutdown() before Run()]
//	StateRunning (3) → StateSleeping (2)    [poll via CAS]
//	StateRunning (3) → StateTerminating (4) [Shutdown()]
//	StateSleeping (2) → StateRunning (3)    [poll wake via CAS]
//	StateSleeping (2) → StateTerminating (4) [Shutdown()]
//	StateTerminating (4) → StateTerminated (1) [shutdown complete]
//	StateTerminated (1) → (terminal)
//
// Use TryTransition (CAS) for the reversible states (Running, Sleeping); use
// Store only for the irreversible terminal state.
type CooperatorState uint64

const (
	// StateAwake indicates the cooperator has been created but not started.
	StateAwake CooperatorState = 0
	// StateTerminated indicates the cooperator has fully shut down.
	StateTerminated CooperatorState = 1
	// StateSleeping indicates the loop is blocked polling for completions
	// or cross-thread submissions.
	StateSleeping CooperatorState = 2
	// StateRunning indicates the loop is actively processing its run queue.
	StateRunning CooperatorState = 3
	// StateTerminating indicates shutdown has been requested but the drain
	// sweep hasn't completed.
	StateTerminating CooperatorState = 4
)

// String returns a human-readable representation of the state.
func (s CooperatorState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free CAS state machine with cache-line padding to
// avoid false sharing with neighboring hot fields, shared between
// CooperatorState and ContextState rather than duplicated per use site.
type fastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte
	v atomic.Uint64
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte
}

func newFastState(initial uint64) *fastState {
	s := &fastState{}
	s.v.Store(initial)
	return s
}

func (s *fastState) Load() uint64 {
	return s.v.Load()
}

func (s *fastState) Store(state uint64) {
	s.v.Store(state)
}

// TryTransition attempts to atomically transition from one state to
// another, returning true on success.
func (s *fastState) TryTransition(from, to uint64) bool {
	return s.v.CompareAndSwap(from, to)
}

// newCooperatorState creates a state machine in StateAwake.
func newCooperatorState() *fastState {
	return newFastState(uint64(StateAwake))
}

func (s *fastState) cooperatorState() CooperatorState {
	return CooperatorState(s.Load())
}

// IsTerminal returns true if the cooperator has fully shut down.
func (s *fastState) IsTerminal() bool {
	return s.cooperatorState() == StateTerminated
}

// CanAcceptWork returns true if the cooperator can still accept submissions.
func (s *fastState) CanAcceptWork() bool {
	switch s.cooperatorState() {
	case StateAwake, StateRunning, StateSleeping, StateTerminating:
		return true
	default:
		return false
	}
}

// ContextState is the lifecycle state of a Context.
type ContextState uint64

const (
	// ContextRunning: at most one per cooperator, holds the baton.
	ContextRunning ContextState = iota
	// ContextYielded: sitting in the cooperator's run queue.
	ContextYielded
	// ContextBlocked: parked on some coordinator's waiter queue.
	ContextBlocked
)

// String implements fmt.Stringer.
func (s ContextState) String() string {
	switch s {
	case ContextRunning:
		return "Running"
	case ContextYielded:
		return "Yielded"
	case ContextBlocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

func newContextState(initial ContextState) *fastState {
	return newFastState(uint64(initial))
}

func (s *fastState) contextState() ContextState {
	return ContextState(s.Load())
}
