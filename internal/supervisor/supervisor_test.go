package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/pipelab/internal/pipeline"
	"github.com/tOgg1/pipelab/internal/procutil"
	"github.com/tOgg1/pipelab/internal/testutil"
)

func chain(texts ...string) []pipeline.Command {
	cmds := make([]pipeline.Command, len(texts))
	for i, text := range texts {
		cmds[i] = pipeline.Command{StageID: i, Text: text}
	}
	return cmds
}

type collected struct {
	lines []string
	exits []ExitEvent
	done  bool
}

// collect reads events for gen until its DoneEvent arrives.
func collect(t *testing.T, s *Supervisor, gen uint64, timeout time.Duration) collected {
	t.Helper()
	var out collected
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-s.Events():
			if ev.Generation() != gen {
				continue
			}
			switch e := ev.(type) {
			case OutputEvent:
				out.lines = append(out.lines, e.Lines...)
			case ExitEvent:
				out.exits = append(out.exits, e)
			case DoneEvent:
				out.done = true
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for run %d (lines=%d exits=%d)", gen, len(out.lines), len(out.exits))
		}
	}
}

const testGrace = 200 * time.Millisecond

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	return newSupervisorWith(t, Options{Grace: testGrace})
}

func newSupervisorWith(t *testing.T, opts Options) *Supervisor {
	t.Helper()
	s := New(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestYesHeadStreamsFiveLines(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "yes", "head")

	s := newTestSupervisor(t)
	handle, err := s.Execute(chain("yes", "head -n 5"))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, handle.StageIDs)
	require.NotEmpty(t, handle.ID)

	got := collect(t, s, handle.Gen, 5*time.Second)
	require.Equal(t, []string{"y", "y", "y", "y", "y"}, got.lines)
	require.Len(t, got.exits, 2)

	for _, ev := range got.exits {
		require.False(t, ev.Killed)
		require.NoError(t, ev.Err())
		if ev.Terminal {
			require.Equal(t, 1, ev.StageID)
			require.Equal(t, 0, ev.ExitCode)
		}
	}
}

func TestTerminalExitFollowsItsOutput(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "printf")

	s := newTestSupervisor(t)
	handle, err := s.Execute(chain(`printf 'a\nb\npartial'`))
	require.NoError(t, err)

	var order []string
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-s.Events():
			switch e := ev.(type) {
			case OutputEvent:
				order = append(order, e.Lines...)
			case ExitEvent:
				order = append(order, "<exit>")
			case DoneEvent:
				done = true
			}
		case <-deadline:
			t.Fatal("timed out")
		}
	}
	require.Equal(t, uint64(1), handle.Gen)
	require.Equal(t, []string{"a", "b", "partial", "<exit>"}, order)
}

func TestStderrIsMergedAndSanitized(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "sh")

	s := newTestSupervisor(t)
	handle, err := s.Execute(chain(`sh -c 'printf "out\n"; printf "\033[31merr\033[0m\n" >&2'`))
	require.NoError(t, err)

	got := collect(t, s, handle.Gen, 5*time.Second)
	require.ElementsMatch(t, []string{"out", "err"}, got.lines)
}

func TestIntermediateStderrFeedsNextStage(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "sh", "wc")

	s := newTestSupervisor(t)
	handle, err := s.Execute(chain(`sh -c "echo one; echo two >&2"`, "wc -l"))
	require.NoError(t, err)

	got := collect(t, s, handle.Gen, 5*time.Second)
	require.Len(t, got.lines, 1)
	require.Equal(t, "2", strings.TrimSpace(got.lines[0]))
}

func TestExecuteSupersedesPreviousRun(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "yes", "echo")

	s := newTestSupervisor(t)
	first, err := s.Execute(chain("yes old"))
	require.NoError(t, err)

	// Wait until the first run is producing.
	select {
	case ev := <-s.Events():
		require.Equal(t, first.Gen, ev.Generation())
	case <-time.After(5 * time.Second):
		t.Fatal("first run produced nothing")
	}

	second, err := s.Execute(chain("echo new"))
	require.NoError(t, err)
	require.Greater(t, second.Gen, first.Gen)
	require.False(t, s.IsCurrent(first.Gen))

	got := collect(t, s, second.Gen, 5*time.Second)
	require.Equal(t, []string{"new"}, got.lines)
}

func TestCancelledRunIsTerminated(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "sleep")

	s := newTestSupervisor(t)
	handle, err := s.Execute(chain("sleep 30"))
	require.NoError(t, err)
	run := s.current
	require.NotNil(t, run)

	s.Cancel()
	require.False(t, s.IsCurrent(handle.Gen))

	select {
	case <-run.done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not finish")
	}
	require.True(t, run.procs[0].hasExited())
}

// waitForLine reads events for gen until one carries want.
func waitForLine(t *testing.T, s *Supervisor, gen uint64, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			out, ok := ev.(OutputEvent)
			if ok && out.Gen == gen && slices.Contains(out.Lines, want) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestCancelKillsStageIgnoringSigterm(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "sh", "sleep")

	s := newTestSupervisor(t)
	handle, err := s.Execute(chain(`sh -c 'trap "" TERM; echo ready; while :; do sleep 0.05; done'`))
	require.NoError(t, err)
	waitForLine(t, s, handle.Gen, "ready")
	run := s.current
	require.NotNil(t, run)

	start := time.Now()
	s.Cancel()
	select {
	case <-run.done:
	case <-time.After(5 * time.Second):
		t.Fatal("stage ignoring SIGTERM was not killed")
	}
	require.GreaterOrEqual(t, time.Since(start), testGrace)

	proc := run.procs[0]
	require.True(t, proc.hasExited())
	code, signaled, _ := procutil.ExitStatus(proc.cmd.ProcessState)
	require.True(t, signaled)
	require.Equal(t, 128+9, code)
}

func TestPTYStageOutputIsSanitized(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "printf")

	s := newSupervisorWith(t, Options{Grace: testGrace, PTY: true})
	s.SetOutputSize(10, 40)
	handle, err := s.Execute(chain(`printf 'a\033[1mb\033[0m\n'`))
	require.NoError(t, err)
	require.NotNil(t, s.current)
	if s.current.pty == nil {
		t.Skip("pseudo-terminal unavailable")
	}

	got := collect(t, s, handle.Gen, 5*time.Second)
	require.Equal(t, []string{"ab"}, got.lines)
	require.Len(t, got.exits, 1)
	require.True(t, got.exits[0].Terminal)
	require.NoError(t, got.exits[0].Err())
}

func TestSpawnFailureAbortsChain(t *testing.T) {
	testutil.SkipIfNoProcesses(t)
	testutil.SkipIfNoCommand(t, "sleep")

	s := newTestSupervisor(t)
	handle, err := s.Execute([]pipeline.Command{
		{StageID: 0, Text: "sleep 30"},
		{StageID: 4, Text: "pipelab-no-such-command --flag"},
		{StageID: 5, Text: "cat"},
	})
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, KindSpawnFailed, serr.Kind)
	require.Equal(t, 1, serr.Position)
	require.Equal(t, 4, serr.StageID)
	require.True(t, errors.Is(err, exec.ErrNotFound))
	require.Contains(t, err.Error(), `"pipelab-no-such-command" not found`)
	require.True(t, IsKind(err, KindSpawnFailed))

	require.Equal(t, []int{0}, handle.StageIDs)
	require.Nil(t, s.current)
}

func TestEmptyChainIsNoop(t *testing.T) {
	s := newTestSupervisor(t)
	before := s.Current()
	handle, err := s.Execute(nil)
	require.NoError(t, err)
	require.True(t, handle.Empty())
	require.Equal(t, before+1, handle.Gen)
	require.Nil(t, s.current)
}

func TestParseCommand(t *testing.T) {
	t.Setenv("PIPELAB_TEST_WORD", "expanded")

	args, err := ParseCommand(`grep -e "a b" 'c\d' $PIPELAB_TEST_WORD`)
	require.NoError(t, err)
	require.Equal(t, []string{"grep", "-e", "a b", `c\d`, "$PIPELAB_TEST_WORD"}, args)

	_, err = ParseCommand("   ")
	require.ErrorIs(t, err, ErrEmptyCommand)

	_, err = ParseCommand("ls | wc")
	require.ErrorIs(t, err, ErrShellOperator)

	args, err = ParseCommand(`grep "a|b"`)
	require.NoError(t, err)
	require.Equal(t, []string{"grep", "a|b"}, args)

	_, err = ParseCommand(`echo "unterminated`)
	require.Error(t, err)
}

func TestExitEventErr(t *testing.T) {
	require.NoError(t, ExitEvent{ExitCode: 0}.Err())
	require.NoError(t, ExitEvent{ExitCode: 143, Killed: true}.Err())
	require.NoError(t, ExitEvent{ExitCode: 141, BrokenPipe: true}.Err())

	err := ExitEvent{ExitCode: 141, BrokenPipe: true, Terminal: true, Position: 2}.Err()
	require.True(t, IsKind(err, KindStageNonZeroExit))

	err = ExitEvent{ExitCode: 1, Position: 0}.Err()
	require.EqualError(t, err, "stage 1 exited with code 1")
}
