package pipeline

import "fmt"

// Phase is the execution phase of one stage.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSpawning
	PhaseRunning
	PhaseCompleted
	PhaseKilled
	PhaseSpawnFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSpawning:
		return "spawning"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseKilled:
		return "killed"
	case PhaseSpawnFailed:
		return "spawn-failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether the phase ends a stage's execution.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseKilled || p == PhaseSpawnFailed
}

// State is a stage's execution state. ExitCode is meaningful only when
// Phase is PhaseCompleted.
type State struct {
	Phase    Phase
	ExitCode int
	// BrokenPipe marks an upstream stage that died from SIGPIPE after its
	// reader exited. That is how a chain like yes | head ends.
	BrokenPipe bool
}

// Idle is the state of a stage that has not been part of any run yet.
var Idle = State{Phase: PhaseIdle}

// Completed builds the Completed(code) state.
func Completed(code int) State {
	return State{Phase: PhaseCompleted, ExitCode: code}
}

// Succeeded reports a completed stage that exited cleanly or was cut off
// by a broken pipe.
func (s State) Succeeded() bool {
	return s.Phase == PhaseCompleted && (s.ExitCode == 0 || s.BrokenPipe)
}

func (s State) String() string {
	if s.Phase == PhaseCompleted {
		return fmt.Sprintf("completed(%d)", s.ExitCode)
	}
	return s.Phase.String()
}

// CanTransition reports whether moving from s to next is allowed:
//
//	Idle → Spawning → Running → {Completed | Killed}
//	Spawning → SpawnFailed
//
// Any state may move back to Spawning when a new run starts.
func (s State) CanTransition(next Phase) bool {
	if next == PhaseSpawning {
		return true
	}
	switch s.Phase {
	case PhaseSpawning:
		return next == PhaseRunning || next == PhaseSpawnFailed
	case PhaseRunning:
		return next == PhaseCompleted || next == PhaseKilled
	default:
		return false
	}
}

// TransitionError reports a rejected state change.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid stage transition %s -> %s", e.From, e.To)
}
