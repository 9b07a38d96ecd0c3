package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/pipelab/internal/tui"
)

// isolate keeps the user's config files and PIPELAB_* variables out of a test.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{"PIPELAB_OUTPUT_QUEUE_SIZE", "PIPELAB_TUI_THEME", "PIPELAB_EXEC_PTY"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func stubTUI(t *testing.T, terminal bool, runErr error) *[]tui.Config {
	t.Helper()
	var calls []tui.Config
	prevRun, prevTerm := runTUI, hasTerminal
	runTUI = func(cfg tui.Config) error {
		calls = append(calls, cfg)
		return runErr
	}
	hasTerminal = func() bool { return terminal }
	t.Cleanup(func() {
		runTUI, hasTerminal = prevRun, prevTerm
	})
	return &calls
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommandPrintsDefaults(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config")
	require.NoError(t, err)
	require.Contains(t, out, "queue_size: 1000")
	require.Contains(t, out, "event_operate_interval_ms: 32")
	require.Contains(t, out, "output_render_interval_ms: 10")
	require.Contains(t, out, "termination_grace: 500ms")
	require.Contains(t, out, "theme: default")
	require.Contains(t, out, "show_help: true")
}

func TestConfigCommandAppliesFlagsAndFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "pipelab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  queue_size: 50\ntui:\n  theme: ocean\n"), 0o644))

	out, err := execute(t, "config", "--config", path, "--output-queue-size", "42", "--no-help", "--termination-grace", "2s")
	require.NoError(t, err)
	require.Contains(t, out, "queue_size: 42")
	require.Contains(t, out, "theme: ocean")
	require.Contains(t, out, "show_help: false")
	require.Contains(t, out, "termination_grace: 2s")
}

func TestInvalidThemeIsAConfigError(t *testing.T) {
	isolate(t)
	calls := stubTUI(t, true, nil)

	_, err := execute(t, "--theme", "matrix")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid theme")
	require.Empty(t, *calls)
}

func TestRootRequiresTerminal(t *testing.T) {
	isolate(t)
	calls := stubTUI(t, false, nil)

	_, err := execute(t)
	var setupErr *TerminalSetupError
	require.True(t, errors.As(err, &setupErr))
	require.ErrorIs(t, err, errNoTTY)
	require.NotEmpty(t, setupErr.Hint)
	require.Empty(t, *calls)
}

func TestRootPassesCommandAndConfigToTUI(t *testing.T) {
	isolate(t)
	calls := stubTUI(t, true, nil)

	_, err := execute(t, "--theme", "sunset", "--event-operate-interval", "50", "--pty", "grep", "-n", "foo bar")
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	cfg := (*calls)[0]
	require.Equal(t, "grep -n foo bar", cfg.Command)
	require.Equal(t, "sunset", cfg.Theme)
	require.Equal(t, 50*time.Millisecond, cfg.OperateInterval)
	require.Equal(t, 10*time.Millisecond, cfg.RenderInterval)
	require.Equal(t, 500*time.Millisecond, cfg.Grace)
	require.Equal(t, 1000, cfg.QueueSize)
	require.True(t, cfg.PTY)
	require.True(t, cfg.MouseCapture)
	require.True(t, cfg.ShowHelp)
}

func TestRootWrapsUIFailure(t *testing.T) {
	isolate(t)
	boom := errors.New("could not open tty")
	stubTUI(t, true, boom)

	_, err := execute(t)
	var setupErr *TerminalSetupError
	require.True(t, errors.As(err, &setupErr))
	require.ErrorIs(t, err, boom)
}

func TestLogFileIsCreated(t *testing.T) {
	isolate(t)
	stubTUI(t, true, nil)
	logPath := filepath.Join(t.TempDir(), "logs", "pipelab.log")

	_, err := execute(t, "--log-file", logPath, "--log-level", "debug")
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"component":"cli"`)
	require.Contains(t, string(data), "starting")
}
