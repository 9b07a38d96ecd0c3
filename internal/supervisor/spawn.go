package supervisor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/mattn/go-shellwords"

	"github.com/tOgg1/pipelab/internal/logging"
	"github.com/tOgg1/pipelab/internal/pipeline"
	"github.com/tOgg1/pipelab/internal/procutil"
)

// ErrShellOperator is returned for stage text containing an unquoted shell
// control operator. Stages run without a shell; each pipe is its own stage.
var ErrShellOperator = errors.New("shell operators are not supported, use a separate stage")

// ParseCommand splits stage text into argv using shell word rules. There is
// no variable expansion or globbing; stages are not run by a shell.
func ParseCommand(text string) ([]string, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false
	args, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if parser.Position >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrShellOperator, text[parser.Position:])
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// spawn starts every command in order, wiring stage i's merged output into
// stage i+1's stdin. It stops at the first failure; already started stages
// are left for the caller to stop.
func (r *Run) spawn(cmds []pipeline.Command) error {
	var stdin *os.File
	for i, c := range cmds {
		terminal := i == len(cmds)-1
		proc, next, err := r.spawnStage(i, c, stdin, terminal)
		if stdin != nil {
			_ = stdin.Close()
			stdin = nil
		}
		if err != nil {
			return &Error{
				Kind:     KindSpawnFailed,
				Gen:      r.Gen,
				StageID:  c.StageID,
				Position: i,
				Command:  c.Text,
				Err:      err,
			}
		}
		r.procs = append(r.procs, proc)
		stdin = next
	}
	return nil
}

// spawnStage starts one stage. For a non-terminal stage it returns the read
// end of its output, which becomes the next stage's stdin.
func (r *Run) spawnStage(position int, c pipeline.Command, stdin *os.File, terminal bool) (*stageProc, *os.File, error) {
	argv, err := ParseCommand(c.Text)
	if err != nil {
		return nil, nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.sup.opts.Dir
	cmd.Env = r.sup.opts.Env
	if stdin != nil {
		cmd.Stdin = stdin
	}
	procutil.ConfigureProcessGroup(cmd)

	out, sink, usedPTY, err := r.outputPair(terminal)
	if err != nil {
		return nil, nil, err
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Start(); err != nil {
		_ = out.Close()
		_ = sink.Close()
		return nil, nil, describeStartError(argv[0], err)
	}
	_ = sink.Close()

	r.logger.Debug().
		Int("position", position).
		Int("stage_id", c.StageID).
		Int("pid", cmd.Process.Pid).
		Str("command", logging.RedactCommand(c.Text)).
		Bool("pty", usedPTY).
		Msg("stage started")

	proc := &stageProc{
		stageID:  c.StageID,
		position: position,
		terminal: terminal,
		cmd:      cmd,
		exited:   make(chan struct{}),
	}
	if terminal {
		proc.out = out
		if usedPTY {
			r.pty = out
		}
		return proc, nil, nil
	}
	return proc, out, nil
}

// outputPair returns the parent's read end and the child's write end for a
// stage's merged stdout and stderr.
func (r *Run) outputPair(terminal bool) (out, sink *os.File, usedPTY bool, err error) {
	if terminal && r.sup.opts.PTY {
		master, tty, perr := pty.Open()
		if perr == nil {
			if r.sup.rows > 0 && r.sup.cols > 0 {
				_ = pty.Setsize(master, &pty.Winsize{Rows: uint16(r.sup.rows), Cols: uint16(r.sup.cols)})
			}
			return master, tty, true, nil
		}
		r.logger.Warn().Err(perr).Msg("pty unavailable, falling back to pipe")
	}
	out, sink, err = os.Pipe()
	if err != nil {
		return nil, nil, false, fmt.Errorf("create pipe: %w", err)
	}
	return out, sink, false, nil
}

func describeStartError(name string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("command %q not found: %w", name, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("permission denied: %q: %w", name, err)
	default:
		return fmt.Errorf("start %q: %w", name, err)
	}
}
