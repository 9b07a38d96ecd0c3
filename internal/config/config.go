// Package config handles pipelab configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure for pipelab. It is fixed at
// startup.
type Config struct {
	// Output settings
	Output OutputConfig `yaml:"output" mapstructure:"output"`

	// Timing settings for the event loop
	Timing TimingConfig `yaml:"timing" mapstructure:"timing"`

	// Exec settings for spawned stages
	Exec ExecConfig `yaml:"exec" mapstructure:"exec"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// OutputConfig contains output buffer settings.
type OutputConfig struct {
	// QueueSize is the number of output lines kept; older lines are dropped.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// TimingConfig contains the two loop cadences.
type TimingConfig struct {
	// EventOperateIntervalMs is how often queued input is applied.
	EventOperateIntervalMs int `yaml:"event_operate_interval_ms" mapstructure:"event_operate_interval_ms"`

	// OutputRenderIntervalMs is how often the screen is redrawn.
	OutputRenderIntervalMs int `yaml:"output_render_interval_ms" mapstructure:"output_render_interval_ms"`
}

// EventOperateInterval returns the input batching period.
func (t TimingConfig) EventOperateInterval() time.Duration {
	return time.Duration(t.EventOperateIntervalMs) * time.Millisecond
}

// OutputRenderInterval returns the redraw period.
func (t TimingConfig) OutputRenderInterval() time.Duration {
	return time.Duration(t.OutputRenderIntervalMs) * time.Millisecond
}

// ExecConfig contains process settings.
type ExecConfig struct {
	// TerminationGrace is the delay between SIGTERM and SIGKILL for a
	// superseded run.
	TerminationGrace time.Duration `yaml:"termination_grace" mapstructure:"termination_grace"`

	// PTY runs the last stage on a pseudo-terminal.
	PTY bool `yaml:"pty" mapstructure:"pty"`

	// Dir is the working directory for stages (default: current directory).
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MarshalYAML writes the grace period as a duration string so printed
// configs can be read back.
func (e ExecConfig) MarshalYAML() (interface{}, error) {
	return struct {
		TerminationGrace string `yaml:"termination_grace"`
		PTY              bool   `yaml:"pty"`
		Dir              string `yaml:"dir"`
	}{
		TerminationGrace: e.TerminationGrace.String(),
		PTY:              e.PTY,
		Dir:              e.Dir,
	}, nil
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color palette (default, high-contrast, ocean, sunset).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// MouseCapture starts with mouse capture on.
	MouseCapture bool `yaml:"mouse_capture" mapstructure:"mouse_capture"`

	// ShowHelp shows the key help footer.
	ShowHelp bool `yaml:"show_help" mapstructure:"show_help"`

	// NoColor disables colors.
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is the log file path. The TUI owns the terminal, so without a
	// file nothing is logged.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			QueueSize: 1000,
		},
		Timing: TimingConfig{
			EventOperateIntervalMs: 32,
			OutputRenderIntervalMs: 10,
		},
		Exec: ExecConfig{
			TerminationGrace: 500 * time.Millisecond,
		},
		TUI: TUIConfig{
			Theme:        "default",
			MouseCapture: true,
			ShowHelp:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Output.QueueSize < 1 {
		return fmt.Errorf("output.queue_size must be at least 1")
	}

	if c.Timing.EventOperateIntervalMs < 1 {
		return fmt.Errorf("timing.event_operate_interval_ms must be at least 1")
	}

	if c.Timing.OutputRenderIntervalMs < 1 {
		return fmt.Errorf("timing.output_render_interval_ms must be at least 1")
	}

	if c.Exec.TerminationGrace <= 0 {
		return fmt.Errorf("exec.termination_grace must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "off":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}

	if strings.TrimSpace(c.TUI.Theme) == "" {
		return fmt.Errorf("tui.theme is required")
	}

	return nil
}
