package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides: PIPELAB_OUTPUT_QUEUE_SIZE
// sets output.queue_size.
const EnvPrefix = "PIPELAB"

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"output-queue-size":      "output.queue_size",
	"event-operate-interval": "timing.event_operate_interval_ms",
	"output-render-interval": "timing.output_render_interval_ms",
	"termination-grace":      "exec.termination_grace",
	"pty":                    "exec.pty",
	"dir":                    "exec.dir",
	"theme":                  "tui.theme",
	"no-color":               "tui.no_color",
	"no-help":                "tui.show_help",
	"log-level":              "logging.level",
	"log-format":             "logging.format",
	"log-file":               "logging.file",
}

// invertedFlags are boolean flags whose value is the negation of their key.
var invertedFlags = map[string]bool{
	"no-help": true,
}

// keys lists every configurable key, for defaults and env bindings.
var keys = []string{
	"output.queue_size",
	"timing.event_operate_interval_ms",
	"timing.output_render_interval_ms",
	"exec.termination_grace",
	"exec.pty",
	"exec.dir",
	"tui.theme",
	"tui.mouse_capture",
	"tui.show_help",
	"tui.no_color",
	"logging.level",
	"logging.format",
	"logging.file",
	"logging.enable_caller",
}

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
	flags      *pflag.FlagSet
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// BindFlags registers a flag set whose changed flags override every other
// source.
func (l *Loader) BindFlags(fs *pflag.FlagSet) {
	l.flags = fs
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.applyFlags(); err != nil {
		return nil, err
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Logging.File = expandTilde(cfg.Logging.File)
	cfg.Exec.Dir = expandTilde(cfg.Exec.Dir)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "pipelab"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "pipelab"))
	}

	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)

	// Explicit bindings; Unmarshal only sees env vars for bound keys.
	bindEnvVars(v)

	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Output
	v.SetDefault("output.queue_size", cfg.Output.QueueSize)

	// Timing
	v.SetDefault("timing.event_operate_interval_ms", cfg.Timing.EventOperateIntervalMs)
	v.SetDefault("timing.output_render_interval_ms", cfg.Timing.OutputRenderIntervalMs)

	// Exec
	v.SetDefault("exec.termination_grace", cfg.Exec.TerminationGrace)
	v.SetDefault("exec.pty", cfg.Exec.PTY)
	v.SetDefault("exec.dir", cfg.Exec.Dir)

	// TUI
	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("tui.mouse_capture", cfg.TUI.MouseCapture)
	v.SetDefault("tui.show_help", cfg.TUI.ShowHelp)
	v.SetDefault("tui.no_color", cfg.TUI.NoColor)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)
}

// loadConfigFile attempts to load the configuration file. A missing file is
// only an error when it was named explicitly.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(expandTilde(l.configFile))
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	return nil
}

// applyFlags copies changed flags over every other source.
func (l *Loader) applyFlags() error {
	if l.flags == nil {
		return nil
	}
	var firstErr error
	l.flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || firstErr != nil {
			return
		}
		if invertedFlags[f.Name] {
			on, err := l.flags.GetBool(f.Name)
			if err != nil {
				firstErr = fmt.Errorf("flag --%s: %w", f.Name, err)
				return
			}
			l.v.Set(key, !on)
			return
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			firstErr = fmt.Errorf("bind flag --%s: %w", f.Name, err)
		}
	})
	return firstErr
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Get returns a Viper value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Viper returns the underlying Viper instance for advanced use.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// bindEnvVars binds environment variables for config keys.
func bindEnvVars(v *viper.Viper) {
	for _, key := range keys {
		_ = v.BindEnv(key, EnvVar(key))
	}
}
