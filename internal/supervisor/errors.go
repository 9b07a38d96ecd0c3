package supervisor

import (
	"errors"
	"fmt"
)

// ErrEmptyCommand is returned when a stage's text tokenises to nothing.
var ErrEmptyCommand = errors.New("empty command")

// Kind classifies supervisor failures.
type Kind int

const (
	// KindSpawnFailed means a stage process could not be created.
	KindSpawnFailed Kind = iota + 1
	// KindStageNonZeroExit means a stage ran but exited with a failure code.
	KindStageNonZeroExit
	// KindTerminationTimeout means a cancelled stage outlived the grace period.
	KindTerminationTimeout
)

func (k Kind) String() string {
	switch k {
	case KindSpawnFailed:
		return "spawn failed"
	case KindStageNonZeroExit:
		return "non-zero exit"
	case KindTerminationTimeout:
		return "termination timeout"
	default:
		return "unknown"
	}
}

// Error describes a failure tied to one stage of a run.
type Error struct {
	Kind     Kind
	Gen      uint64
	StageID  int
	Position int
	Command  string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSpawnFailed:
		if e.Err != nil {
			return fmt.Sprintf("stage %d: %v", e.Position+1, e.Err)
		}
		return fmt.Sprintf("stage %d: spawn failed", e.Position+1)
	case KindStageNonZeroExit:
		return fmt.Sprintf("stage %d exited with code %d", e.Position+1, e.ExitCode)
	case KindTerminationTimeout:
		return fmt.Sprintf("stage %d did not exit within the grace period", e.Position+1)
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a supervisor *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Kind == kind
}
