package orchestrator

import "fmt"

// State is a step of one bundle-update cycle.
type State string

const (
	StateIdle            State = "Idle"
	StateFiltering       State = "Filtering"
	StateResolving       State = "Resolving"
	StateServerAggregate State = "ServerAggregate"
	StateServerAttach    State = "ServerAttach"
	StateClientAggregate State = "ClientAggregate"
	StateClientAttach    State = "ClientAttach"
	StateCompiling       State = "Compiling"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateFiltering
	case StateFiltering:
		return to == StateResolving
	case StateResolving:
		return to == StateServerAggregate || to == StateDone || to == StateFailed
	case StateServerAggregate:
		return to == StateServerAttach
	case StateServerAttach:
		return to == StateClientAggregate
	case StateClientAggregate:
		return to == StateClientAttach
	case StateClientAttach:
		return to == StateCompiling || to == StateFailed
	case StateCompiling:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

// Transition validates from -> to.
func Transition(from, to State) (State, error) {
	if !isAllowedTransition(from, to) {
		return from, fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	return to, nil
}

// Abort moves a non-terminal state to Failed regardless of the stage graph.
// It is used when the cycle's context is cancelled between stages.
func Abort(from State) (State, error) {
	if from.IsTerminal() {
		return from, fmt.Errorf("cannot abort terminal state %s", from)
	}
	return StateFailed, nil
}

// Status is the final result of a cycle.
type Status string

const (
	StatusNoOp      Status = "noop"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsSuccess reports whether the cycle ended without error.
func (s Status) IsSuccess() bool {
	return s == StatusNoOp || s == StatusSucceeded
}
