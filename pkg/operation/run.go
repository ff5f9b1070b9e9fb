package operation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// State is the client-side lifecycle state of a run
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateTriggered  State = "TRIGGERED"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
)

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

var errRunFinished = errors.New("run already finished")

// Run tracks one triggered operation. Once terminal it is read-only.
type Run struct {
	op Operation

	mu    sync.Mutex
	state State
	last  *Snapshot
}

func newRun(op Operation) *Run {
	return &Run{op: op, state: StateNotStarted}
}

// Operation returns the operation this run belongs to
func (r *Run) Operation() Operation {
	return r.op
}

// State returns the current lifecycle state
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastStatus returns the most recently observed remote status
func (r *Run) LastStatus() (types.OperationStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return "", false
	}
	return r.last.Status, true
}

func (r *Run) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.last = &s
}

func (r *Run) advance(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Terminal() {
		return fmt.Errorf("cannot move %s %s to %s: %w", r.op.Kind(), r.op.ID(), to, errRunFinished)
	}
	switch {
	case r.state == StateNotStarted && to == StateTriggered:
	case r.state == StateTriggered && to.Terminal():
	default:
		return fmt.Errorf("invalid transition %s -> %s for %s %s", r.state, to, r.op.Kind(), r.op.ID())
	}
	r.state = to
	return nil
}
