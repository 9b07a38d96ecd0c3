// Package cli wires configuration, logging and the terminal UI behind the
// pipelab command.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/pipelab/internal/config"
	"github.com/tOgg1/pipelab/internal/logging"
	"github.com/tOgg1/pipelab/internal/tui"
)

// Swapped out in tests.
var (
	runTUI      = tui.Run
	hasTerminal = hasTTY
)

// TerminalSetupError is returned when the terminal cannot host the UI.
type TerminalSetupError struct {
	Message string
	Hint    string
	Err     error
}

func (e *TerminalSetupError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *TerminalSetupError) Unwrap() error { return e.Err }

var errNoTTY = errors.New("stdin and stdout must be a terminal")

// Execute runs the pipelab command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

type rootOptions struct {
	configFile string
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pipelab [command...]",
		Short: "Build and run UNIX pipelines interactively",
		Long: `pipelab edits a pipeline one stage per line and reruns it on Enter.
The output of the last enabled stage is shown live below the stages.

Stages are split into words like a shell but are not run by one: there is
no variable expansion, globbing or redirection.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/pipelab/config.yaml)")
	flags.Int("output-queue-size", 1000, "number of output lines kept")
	flags.Int("event-operate-interval", 32, "input batching interval in milliseconds")
	flags.Int("output-render-interval", 10, "redraw interval in milliseconds")
	flags.Duration("termination-grace", 500*time.Millisecond, "delay between SIGTERM and SIGKILL for a superseded run")
	flags.Bool("pty", false, "run the last stage on a pseudo-terminal")
	flags.String("dir", "", "working directory for stages")
	flags.String("theme", "default", "theme: "+strings.Join(tui.ThemeNames(), "|"))
	flags.Bool("no-color", false, "disable colors")
	flags.Bool("no-help", false, "hide the key help footer")
	flags.String("log-level", "info", "log level: trace|debug|info|warn|error")
	flags.String("log-format", "json", "log format: json|console")
	flags.String("log-file", "", "write logs to this file (default: no logging)")

	// Everything after the first positional argument belongs to the main
	// stage: pipelab grep -n foo.
	cmd.Flags().SetInterspersed(false)

	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// loadConfig resolves the effective configuration for cmd.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	loader := config.NewLoader()
	if opts.configFile != "" {
		loader.SetConfigFile(opts.configFile)
	}
	loader.BindFlags(cmd.Flags())
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tui.ThemeNames(), strings.ToLower(cfg.TUI.Theme)) {
		return nil, fmt.Errorf("invalid theme %q (want one of %s)", cfg.TUI.Theme, strings.Join(tui.ThemeNames(), ", "))
	}
	return cfg, nil
}

// setupLogging points the global logger at the configured file. The
// returned closer must run after the UI exits.
func setupLogging(cfg config.LoggingConfig) (io.Closer, error) {
	out, err := logging.OpenFile(cfg.File)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       out,
		EnableCaller: cfg.EnableCaller,
	})
	return out, nil
}

func runRoot(cmd *cobra.Command, opts *rootOptions, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	closer, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	if !hasTerminal() {
		return &TerminalSetupError{
			Message: "pipelab requires an interactive terminal",
			Hint:    "run it directly in a terminal, not through a pipe or redirect",
			Err:     errNoTTY,
		}
	}

	if cfg.TUI.NoColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	logger := logging.Component("cli")
	logger.Info().
		Str("dir", cfg.Exec.Dir).
		Int("queue_size", cfg.Output.QueueSize).
		Bool("pty", cfg.Exec.PTY).
		Msg("starting")

	if err := runTUI(tuiConfig(cfg, args)); err != nil {
		return &TerminalSetupError{Message: "terminal UI failed", Err: err}
	}
	logger.Info().Msg("exited")
	return nil
}

func tuiConfig(cfg *config.Config, args []string) tui.Config {
	return tui.Config{
		Command:         strings.Join(args, " "),
		QueueSize:       cfg.Output.QueueSize,
		OperateInterval: cfg.Timing.EventOperateInterval(),
		RenderInterval:  cfg.Timing.OutputRenderInterval(),
		Grace:           cfg.Exec.TerminationGrace,
		PTY:             cfg.Exec.PTY,
		Dir:             cfg.Exec.Dir,
		Theme:           cfg.TUI.Theme,
		MouseCapture:    cfg.TUI.MouseCapture,
		ShowHelp:        cfg.TUI.ShowHelp,
	}
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
