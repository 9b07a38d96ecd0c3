// Package supervisor turns the enabled stages of a pipeline into a live chain
// of OS processes and streams the last stage's merged output back to the
// event loop.
//
// Each call to Execute starts a new generation. The previous run is signalled
// and forgotten without waiting for it; anything it still sends carries the
// old generation and is dropped by the consumer.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/pipelab/internal/logging"
	"github.com/tOgg1/pipelab/internal/pipeline"
)

const (
	// DefaultGrace is how long a cancelled stage gets between SIGTERM and
	// SIGKILL.
	DefaultGrace = 500 * time.Millisecond
	// DefaultEventBuffer is the capacity of the event channel.
	DefaultEventBuffer = 256
)

// Options configures a Supervisor.
type Options struct {
	// Grace is the delay before a cancelled stage is force-killed.
	Grace time.Duration
	// PTY gives the terminal stage a pseudo-terminal instead of a pipe.
	PTY bool
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
	// Dir is the working directory of spawned stages. Empty means the
	// current directory.
	Dir string
	// Env is the environment of spawned stages. Nil inherits ours.
	Env []string
	// Logger receives lifecycle logs. The zero value uses the
	// "supervisor" component logger.
	Logger *zerolog.Logger
}

// RunHandle identifies the run started by Execute.
type RunHandle struct {
	ID  string
	Gen uint64
	// StageIDs lists the stages that were spawned, in chain order.
	StageIDs []int
}

// Empty reports whether the run has no processes.
func (h RunHandle) Empty() bool { return len(h.StageIDs) == 0 }

// Supervisor owns the current run. Execute, Cancel and SetOutputSize are
// meant to be called from a single goroutine (the event loop).
type Supervisor struct {
	opts   Options
	logger zerolog.Logger
	events chan Event
	gen    atomic.Uint64

	current *Run
	rows    int
	cols    int
}

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	logger := logging.Component("supervisor")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Supervisor{
		opts:   opts,
		logger: logger,
		events: make(chan Event, opts.EventBuffer),
	}
}

// Events returns the channel every run reports on.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Current returns the current generation.
func (s *Supervisor) Current() uint64 {
	return s.gen.Load()
}

// IsCurrent reports whether gen is still the authoritative generation.
func (s *Supervisor) IsCurrent(gen uint64) bool {
	return gen == s.gen.Load()
}

// SetOutputSize records the output panel size used for PTY stages.
func (s *Supervisor) SetOutputSize(rows, cols int) {
	s.rows, s.cols = rows, cols
	if s.current != nil {
		s.current.resize(rows, cols)
	}
}

// Execute cancels the current run and starts cmds as a new one. An empty
// command list only cancels. On spawn failure the partially started chain
// is terminated and a *Error of KindSpawnFailed is returned together with
// the handle of the aborted run.
func (s *Supervisor) Execute(cmds []pipeline.Command) (RunHandle, error) {
	gen := s.gen.Add(1)
	s.stopCurrent()

	handle := RunHandle{ID: uuid.NewString(), Gen: gen}
	if len(cmds) == 0 {
		s.logger.Debug().Uint64("gen", gen).Msg("empty chain, nothing to run")
		return handle, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := newRun(ctx, cancel, handle.ID, gen, s)
	run.logger.Info().Int("stages", len(cmds)).Msg("starting run")

	if err := run.spawn(cmds); err != nil {
		handle.StageIDs = run.stageIDs()
		run.stop(s.opts.Grace)
		// Reap the stages that did start; their events are dropped.
		run.start()
		run.logger.Warn().Err(err).Msg("run aborted")
		return handle, err
	}

	handle.StageIDs = run.stageIDs()
	s.current = run
	run.start()
	return handle, nil
}

// Cancel stops the current run, if any, and advances the generation so
// anything it still reports is stale.
func (s *Supervisor) Cancel() {
	s.gen.Add(1)
	s.stopCurrent()
}

// Shutdown cancels the current run and waits for its goroutines to finish
// or for ctx to expire.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	run := s.current
	s.Cancel()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) stopCurrent() {
	if s.current == nil {
		return
	}
	s.current.stop(s.opts.Grace)
	s.current = nil
}
