package supervisor

// Event is a message from a run's background goroutines to the event loop.
// Every event carries the generation of the run that produced it so the
// consumer can drop it once that generation is no longer current.
type Event interface {
	Generation() uint64
}

// OutputEvent carries sanitized lines read from the terminal stage in one
// chunk.
type OutputEvent struct {
	Gen   uint64
	Lines []string
}

// ExitEvent reports that one stage process has exited.
type ExitEvent struct {
	Gen      uint64
	StageID  int
	Position int
	ExitCode int
	Signaled bool
	// BrokenPipe is set when the process died from SIGPIPE.
	BrokenPipe bool
	// Killed is set when the run had been cancelled before the process exited.
	Killed bool
	// Terminal is set for the last stage of the chain.
	Terminal bool
}

// DoneEvent is sent once every process of a run has exited and all output has
// been forwarded.
type DoneEvent struct {
	Gen uint64
}

func (e OutputEvent) Generation() uint64 { return e.Gen }
func (e ExitEvent) Generation() uint64   { return e.Gen }
func (e DoneEvent) Generation() uint64   { return e.Gen }

// Err converts a failed exit into a *Error. It returns nil for successful
// exits, for killed stages, and for non-terminal stages that died from
// SIGPIPE because their reader went away.
func (e ExitEvent) Err() error {
	if e.Killed || e.ExitCode == 0 {
		return nil
	}
	if e.BrokenPipe && !e.Terminal {
		return nil
	}
	return &Error{
		Kind:     KindStageNonZeroExit,
		Gen:      e.Gen,
		StageID:  e.StageID,
		Position: e.Position,
		ExitCode: e.ExitCode,
	}
}
