// Package tui is the interactive pipeline editor: one line editor per stage,
// a live output panel for the last enabled stage and a notification line.
//
// All state is owned by the bubbletea event loop. Input is queued and
// applied on the operate tick; the frame is rebuilt on the render tick.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/rs/zerolog"

	"github.com/tOgg1/pipelab/internal/events"
	"github.com/tOgg1/pipelab/internal/logging"
	"github.com/tOgg1/pipelab/internal/output"
	"github.com/tOgg1/pipelab/internal/pipeline"
	"github.com/tOgg1/pipelab/internal/supervisor"
)

const (
	defaultQueueSize       = 1000
	defaultOperateInterval = 32 * time.Millisecond
	defaultRenderInterval  = 10 * time.Millisecond
	shutdownTimeout        = 2 * time.Second
	maxFPS                 = 120
)

// Config configures the TUI.
type Config struct {
	// Command is the initial text of the main stage.
	Command string
	// QueueSize is the output buffer capacity in lines.
	QueueSize       int
	OperateInterval time.Duration
	RenderInterval  time.Duration
	// Grace is the delay between SIGTERM and SIGKILL for cancelled stages.
	Grace time.Duration
	PTY   bool
	Dir   string
	Theme string
	// MouseCapture starts with mouse reporting on. Esc toggles it.
	MouseCapture bool
	ShowHelp     bool

	// Executor runs the chain. Nil builds a supervisor from the fields above.
	Executor Executor
}

// Executor starts and cancels runs. *supervisor.Supervisor implements it.
type Executor interface {
	Execute(cmds []pipeline.Command) (supervisor.RunHandle, error)
	Cancel()
	Shutdown(ctx context.Context) error
	Events() <-chan supervisor.Event
	SetOutputSize(rows, cols int)
}

// Model is the bubbletea model.
type Model struct {
	cfg    Config
	keys   keyMap
	styles styles
	logger zerolog.Logger

	exec     Executor
	pipeline *pipeline.Pipeline
	editors  map[int]textinput.Model
	buffer   *output.Buffer
	queue    events.Queue
	zones    *zone.Manager
	spinner  spinner.Model
	help     help.Model

	notice *Notification

	gen      uint64
	runID    string
	runSeq   uint64 // first output sequence number of the current run
	running  bool
	spinning bool
	follow   bool
	mouse    bool
	showHelp bool
	width    int
	height   int

	dirty bool
	frame string
	stale int
}

// NewModel builds the model. It does not start any process.
func NewModel(cfg Config) (*Model, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	p, _ := lookupPalette(normalized.Theme)
	st := newStyles(p)
	logger := logging.Component("tui")

	exec := normalized.Executor
	if exec == nil {
		exec = supervisor.New(supervisor.Options{
			Grace: normalized.Grace,
			PTY:   normalized.PTY,
			Dir:   normalized.Dir,
		})
	}

	m := &Model{
		cfg:      normalized,
		keys:     defaultKeyMap(),
		styles:   st,
		logger:   logger,
		exec:     exec,
		pipeline: pipeline.New(normalized.Command),
		editors:  make(map[int]textinput.Model),
		buffer:   output.New(normalized.QueueSize),
		zones:    zone.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(st.badgeRunning)),
		help:     help.New(),
		follow:   true,
		mouse:    normalized.MouseCapture,
		showHelp: normalized.ShowHelp,
		dirty:    true,
	}
	m.zones.SetEnabled(m.mouse)
	head := m.pipeline.At(0)
	m.editors[head.ID] = newEditor(head, st)
	m.syncEditorFocus()
	return m, nil
}

// Run starts the TUI and blocks until the user quits.
func Run(cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithFPS(model.fps())}
	if model.mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	program := tea.NewProgram(model, opts...)
	_, err = program.Run()
	return err
}

// Close cancels the current run and waits briefly for it to wind down.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := m.exec.Shutdown(ctx)
	if m.zones != nil {
		m.zones.Close()
	}
	if err != nil {
		return fmt.Errorf("shutdown executor: %w", err)
	}
	return nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.operateTick(), m.renderTick())
}

func (m *Model) fps() int {
	fps := int(time.Second / m.cfg.RenderInterval)
	if fps > maxFPS {
		return maxFPS
	}
	if fps < 1 {
		return 1
	}
	return fps
}

func (c Config) normalize() (Config, error) {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.OperateInterval <= 0 {
		c.OperateInterval = defaultOperateInterval
	}
	if c.RenderInterval <= 0 {
		c.RenderInterval = defaultRenderInterval
	}
	if c.Grace <= 0 {
		c.Grace = supervisor.DefaultGrace
	}
	c.Theme = strings.TrimSpace(c.Theme)
	if c.Theme == "" {
		c.Theme = "default"
	}
	if _, ok := lookupPalette(c.Theme); !ok {
		return Config{}, fmt.Errorf("invalid theme %q (want one of %s)", c.Theme, strings.Join(ThemeNames(), ", "))
	}
	return c, nil
}
