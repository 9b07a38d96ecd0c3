package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/pipelab/internal/ansi"
	"github.com/tOgg1/pipelab/internal/logging"
	"github.com/tOgg1/pipelab/internal/procutil"
)

const readChunk = 32 * 1024

// Run is one generation's process chain.
type Run struct {
	ID  string
	Gen uint64

	ctx    context.Context
	cancel context.CancelFunc
	sup    *Supervisor
	logger zerolog.Logger

	procs     []*stageProc
	pty       *os.File
	group     errgroup.Group
	cancelled atomic.Bool
	done      chan struct{}
}

type stageProc struct {
	stageID  int
	position int
	terminal bool
	cmd      *exec.Cmd
	// out is the terminal stage's merged output.
	out    *os.File
	exited chan struct{}
}

func (p *stageProc) hasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

func newRun(ctx context.Context, cancel context.CancelFunc, id string, gen uint64, sup *Supervisor) *Run {
	return &Run{
		ID:     id,
		Gen:    gen,
		ctx:    ctx,
		cancel: cancel,
		sup:    sup,
		logger: logging.WithRun(sup.logger, id, gen),
		done:   make(chan struct{}),
	}
}

func (r *Run) stageIDs() []int {
	ids := make([]int, len(r.procs))
	for i, p := range r.procs {
		ids[i] = p.stageID
	}
	return ids
}

// start launches one goroutine per spawned process.
func (r *Run) start() {
	for _, p := range r.procs {
		r.group.Go(func() error {
			if p.out != nil {
				r.forward(p)
			}
			return r.wait(p)
		})
	}
	go func() {
		if err := r.group.Wait(); err != nil {
			r.logger.Warn().Err(err).Msg("runner failed")
		}
		close(r.done)
		r.send(DoneEvent{Gen: r.Gen})
		r.logger.Info().Bool("cancelled", r.cancelled.Load()).Msg("run finished")
	}()
}

// forward streams the terminal stage's output to the event loop until EOF
// or until the run's generation is superseded.
func (r *Run) forward(p *stageProc) {
	defer func() { _ = p.out.Close() }()

	san := ansi.New()
	var lines lineSplitter
	buf := make([]byte, readChunk)
	clean := make([]byte, 0, readChunk)
	for {
		n, err := p.out.Read(buf)
		if n > 0 {
			if !r.sup.IsCurrent(r.Gen) {
				r.logger.Debug().Msg("generation superseded, output dropped")
				return
			}
			clean = san.Write(clean[:0], buf[:n])
			if batch := lines.Feed(clean); len(batch) > 0 {
				if !r.send(OutputEvent{Gen: r.Gen, Lines: batch}) {
					return
				}
			}
		}
		if err != nil {
			if !isStreamEnd(err) {
				r.logger.Warn().Err(err).Int("position", p.position).Msg("read output")
			}
			break
		}
	}
	if tail, ok := lines.Flush(); ok && r.sup.IsCurrent(r.Gen) {
		r.send(OutputEvent{Gen: r.Gen, Lines: []string{tail}})
	}
}

func (r *Run) wait(p *stageProc) error {
	err := p.cmd.Wait()
	close(p.exited)

	code, signaled, brokenPipe := procutil.ExitStatus(p.cmd.ProcessState)
	ev := ExitEvent{
		Gen:        r.Gen,
		StageID:    p.stageID,
		Position:   p.position,
		ExitCode:   code,
		Signaled:   signaled,
		BrokenPipe: brokenPipe,
		Killed:     r.cancelled.Load(),
		Terminal:   p.terminal,
	}
	r.logger.Debug().
		Int("position", p.position).
		Int("exit_code", code).
		Bool("signaled", signaled).
		Bool("killed", ev.Killed).
		Msg("stage exited")
	r.send(ev)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("wait stage %d: %w", p.position+1, err)
	}
	return nil
}

// send delivers ev unless the run has been cancelled.
func (r *Run) send(ev Event) bool {
	select {
	case r.sup.events <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// stop marks the run cancelled and sends SIGTERM to every live stage without
// waiting. Stages still alive after grace are killed.
func (r *Run) stop(grace time.Duration) {
	if !r.cancelled.CompareAndSwap(false, true) {
		return
	}
	r.cancel()

	var live []*stageProc
	for _, p := range r.procs {
		if p.hasExited() {
			continue
		}
		live = append(live, p)
		if err := procutil.TerminateGroup(p.cmd.Process.Pid); err != nil {
			r.logger.Warn().Err(err).Int("position", p.position).Msg("terminate stage")
		}
	}
	if len(live) == 0 {
		return
	}
	r.logger.Info().Int("live", len(live)).Msg("run cancelled")
	go r.reap(live, grace)
}

func (r *Run) reap(procs []*stageProc, grace time.Duration) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-r.done:
		return
	case <-timer.C:
	}
	for _, p := range procs {
		pid := p.cmd.Process.Pid
		if p.hasExited() || !procutil.IsProcessAlive(pid) {
			continue
		}
		err := &Error{
			Kind:     KindTerminationTimeout,
			Gen:      r.Gen,
			StageID:  p.stageID,
			Position: p.position,
		}
		r.logger.Warn().Err(err).Int("pid", pid).Msg("killing stage")
		if kerr := procutil.KillGroup(pid); kerr != nil {
			r.logger.Warn().Err(kerr).Int("position", p.position).Msg("kill stage")
		}
	}
}

func (r *Run) resize(rows, cols int) {
	if r.pty == nil || rows <= 0 || cols <= 0 {
		return
	}
	_ = pty.Setsize(r.pty, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// isStreamEnd reports read errors that mean the writer side is gone. A PTY
// master returns EIO once the slave is closed.
func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}
