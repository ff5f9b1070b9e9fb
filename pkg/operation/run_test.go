package operation

import (
	"errors"
	"testing"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

func TestRunTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []State
		wantErr bool
	}{
		{"trigger", []State{StateTriggered}, false},
		{"succeed", []State{StateTriggered, StateSucceeded}, false},
		{"fail", []State{StateTriggered, StateFailed}, false},
		{"cancel", []State{StateTriggered, StateCancelled}, false},
		{"finish before trigger", []State{StateSucceeded}, true},
		{"trigger twice", []State{StateTriggered, StateTriggered}, true},
		{"leave terminal", []State{StateTriggered, StateFailed, StateSucceeded}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newRun(PipelineExecution{PoolID: "p", JobID: "j"})
			var err error
			for _, s := range tt.path {
				if err = run.advance(s); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("advance(%v) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestRunTerminalIsReadOnly(t *testing.T) {
	run := newRun(ModelReload{PoolID: "p", ModelID: "m"})
	if err := run.advance(StateTriggered); err != nil {
		t.Fatalf("advance(TRIGGERED) error: %v", err)
	}
	run.observe(Snapshot{Status: types.StatusRunning, Exists: true})
	if err := run.advance(StateSucceeded); err != nil {
		t.Fatalf("advance(SUCCEEDED) error: %v", err)
	}

	run.observe(Snapshot{Status: types.StatusFailure, Exists: true})
	if status, _ := run.LastStatus(); status != types.StatusRunning {
		t.Errorf("LastStatus() = %q, want %q", status, types.StatusRunning)
	}

	err := run.advance(StateCancelled)
	if !errors.Is(err, errRunFinished) {
		t.Errorf("advance(CANCELLED) error = %v, want errRunFinished", err)
	}
}

func TestClassification(t *testing.T) {
	pipeline := PipelineExecution{}
	reload := ModelReload{}
	push := BulkPushExecution{}

	tests := []struct {
		name          string
		op            Operation
		snap          Snapshot
		wantProgress  bool
		wantTerminal  bool
		wantSucceeded bool
	}{
		{"pipeline queued", pipeline, Snapshot{Status: types.StatusQueued, Exists: true}, true, false, false},
		{"pipeline running", pipeline, Snapshot{Status: types.StatusRunning, Exists: true}, true, false, false},
		{"pipeline success", pipeline, Snapshot{Status: types.StatusSuccess, Exists: true}, false, true, true},
		{"pipeline failure", pipeline, Snapshot{Status: types.StatusFailure, Exists: true}, false, true, false},
		{"reload lost connection", reload, Snapshot{Status: types.StatusLostConnection, Exists: true}, true, false, false},
		{"reload cancelling", reload, Snapshot{Status: types.StatusCancelling, Exists: true}, true, false, false},
		{"reload warning", reload, Snapshot{Status: types.StatusWarning, Exists: true}, false, true, true},
		{"reload never loaded", reload, Snapshot{Status: types.StatusNotStarted}, false, true, true},
		{"reload error", reload, Snapshot{Status: types.StatusFailure, Exists: true}, false, true, false},
		{"push new", push, Snapshot{Status: types.StatusNotStarted, Raw: "NEW", Exists: true}, false, false, false},
		{"push running", push, Snapshot{Status: types.StatusRunning, Raw: "RUNNING", Exists: true}, true, false, false},
		{"push done", push, Snapshot{Status: types.StatusSuccess, Raw: "DONE", Exists: true}, true, true, true},
		{"push error", push, Snapshot{Status: types.StatusFailure, Raw: "ERROR", Exists: true}, true, true, false},
		{"push canceled", push, Snapshot{Status: types.StatusCancelled, Raw: "CANCELED", Exists: true}, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inProgress(tt.op, tt.snap); got != tt.wantProgress {
				t.Errorf("inProgress() = %v, want %v", got, tt.wantProgress)
			}
			if got := terminal(tt.op, tt.snap); got != tt.wantTerminal {
				t.Errorf("terminal() = %v, want %v", got, tt.wantTerminal)
			}
			if got := succeeded(tt.op, tt.snap); got != tt.wantSucceeded {
				t.Errorf("succeeded() = %v, want %v", got, tt.wantSucceeded)
			}
		})
	}
}
