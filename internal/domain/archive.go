package domain

import "fmt"

// ArchiveRequest is a request id that has been resolved to a directory
// under the storage root. Only the resolver constructs it.
type ArchiveRequest struct {
	ID  string // Untrusted identifier as received
	Dir string // Absolute, existing directory
}

type ProcessState string

const (
	ProcessCreated  ProcessState = "CREATED"
	ProcessRunning  ProcessState = "RUNNING"
	ProcessFinished ProcessState = "FINISHED"
	ProcessKilled   ProcessState = "KILLED"
	ProcessReaped   ProcessState = "REAPED"
)

var processTransitions = map[ProcessState][]ProcessState{
	ProcessCreated:  {ProcessRunning, ProcessReaped},
	ProcessRunning:  {ProcessFinished, ProcessKilled, ProcessReaped},
	ProcessFinished: {ProcessReaped},
	ProcessKilled:   {ProcessReaped},
}

// CanTransition reports whether the lifecycle allows moving to next.
// CREATED -> REAPED covers a spawn that failed after allocation.
func (s ProcessState) CanTransition(next ProcessState) bool {
	for _, allowed := range processTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next or an error if the move is illegal
func (s ProcessState) Transition(next ProcessState) (ProcessState, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("invalid process state transition: %s -> %s", s, next)
	}
	return next, nil
}

func (s ProcessState) IsTerminal() bool {
	return s == ProcessReaped
}
