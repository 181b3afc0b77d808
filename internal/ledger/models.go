package ledger

import (
	"fmt"
	"time"
)

// State is a step of the per-file workflow.
type State string

const (
	StatePending          State = "pending"
	StateDuplicateChecked State = "duplicate_checked"
	StateConfigValidated  State = "config_validated"
	StateSensorLoop       State = "sensor_loop"
	StateArchived         State = "archived"
	StateQuarantined      State = "quarantined"
)

var allStates = []State{
	StatePending,
	StateDuplicateChecked,
	StateConfigValidated,
	StateSensorLoop,
	StateArchived,
	StateQuarantined,
}

// next lists the forward moves out of each non-terminal state. Any
// non-terminal state may also end in quarantine.
var next = map[State]State{
	StatePending:          StateDuplicateChecked,
	StateDuplicateChecked: StateConfigValidated,
	StateConfigValidated:  StateSensorLoop,
	StateSensorLoop:       StateArchived,
}

// AllStates returns the states in workflow order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState validates a state name.
func ParseState(s string) (State, bool) {
	for _, st := range allStates {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateArchived || s == StateQuarantined
}

// TransitionError is returned for a move the workflow does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid ledger transition %s -> %s", e.From, e.To)
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateQuarantined {
		return true
	}
	return next[from] == to
}

// Entry is one ingestion attempt.
type Entry struct {
	ID           int64
	RunID        string
	FileName     string
	FileSize     int64
	State        State
	DeploymentID int64
	LoggerID     int64
	Detail       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary aggregates entry counts for status output.
type Summary struct {
	Total       int
	InFlight    int
	Archived    int
	Quarantined int
}
