package tui

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/pipelab/internal/events"
	"github.com/tOgg1/pipelab/internal/pipeline"
	"github.com/tOgg1/pipelab/internal/supervisor"
)

const (
	// maxDrainPerUpdate bounds how many run events one Update consumes so a
	// flooding stage cannot starve input.
	maxDrainPerUpdate = 512
	wheelLines        = 1
)

type operateTickMsg time.Time

type renderTickMsg time.Time

func (m *Model) operateTick() tea.Cmd {
	return tea.Tick(m.cfg.OperateInterval, func(t time.Time) tea.Msg {
		return operateTickMsg(t)
	})
}

func (m *Model) renderTick() tea.Cmd {
	return tea.Tick(m.cfg.RenderInterval, func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	m.drainRunEvents()

	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, m.keys.Quit) {
		return m, tea.Quit
	}
	if events.Accepts(msg) {
		m.queue.Push(msg)
		return m, nil
	}

	switch typed := msg.(type) {
	case operateTickMsg:
		cmds = append(cmds, m.operate(), m.operateTick())
	case renderTickMsg:
		m.renderFrame()
		cmds = append(cmds, m.renderTick())
	case spinner.TickMsg:
		if !m.running {
			m.spinning = false
			break
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		m.dirty = true
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	return m.frame
}

// renderFrame rebuilds the cached frame when anything visible changed.
func (m *Model) renderFrame() {
	if !m.dirty {
		return
	}
	m.frame = m.zones.Scan(m.render())
	m.dirty = false
}

// operate applies everything queued since the last operate tick.
func (m *Model) operate() tea.Cmd {
	if m.queue.Len() == 0 {
		return nil
	}
	var cmds []tea.Cmd
	for _, action := range events.Coalesce(m.queue.Drain(), m.keys.classify) {
		if cmd := m.apply(action); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	m.dirty = true
	return tea.Batch(cmds...)
}

func (m *Model) apply(action events.Action) tea.Cmd {
	switch action.Kind {
	case events.KindResize:
		m.applyResize(action.Width, action.Height)
	case events.KindText:
		m.editKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: action.Runes}, 1)
	case events.KindFocus:
		if m.pipeline.MoveFocus(action.Delta) {
			m.syncEditorFocus()
		}
	case events.KindScroll:
		m.scroll(action.Delta*wheelLines + action.Pages*max(1, m.outputRows()))
	case events.KindClick:
		m.click(action.Mouse)
	case events.KindKey:
		return m.handleKey(action.Key, action.Count)
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg, count int) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Run):
		return m.execute()
	case key.Matches(msg, m.keys.Mouse):
		return m.toggleMouse()
	case key.Matches(msg, m.keys.Add):
		for i := 0; i < count; i++ {
			if !m.addStage() {
				break
			}
		}
	case key.Matches(msg, m.keys.Delete):
		for i := 0; i < count; i++ {
			if !m.deleteStage() {
				break
			}
		}
	case key.Matches(msg, m.keys.Toggle):
		m.toggleStage()
	default:
		m.editKey(msg, count)
	}
	return nil
}

func (m *Model) addStage() bool {
	if m.height > 0 && m.pipeline.Len() >= MaxStages(m.height, m.showHelp) {
		m.notify(NoticeInfo, "Cannot create more stages")
		return false
	}
	stage := m.pipeline.Append()
	ed := newEditor(stage, m.styles)
	ed.Width = m.editorWidth()
	m.editors[stage.ID] = ed
	m.syncEditorFocus()
	m.resizeOutput()
	return true
}

func (m *Model) deleteStage() bool {
	removed, err := m.pipeline.DeleteFocused()
	if err != nil {
		return false
	}
	delete(m.editors, removed.ID)
	m.zones.Clear(stageZoneID(removed.ID))
	m.syncEditorFocus()
	m.resizeOutput()
	return true
}

// toggleStage flips the focused stage in or out of the chain. It does not
// run anything; Enter does.
func (m *Model) toggleStage() {
	m.pipeline.ToggleFocused()
	m.syncEditorFocus()
}

func (m *Model) toggleMouse() tea.Cmd {
	m.mouse = !m.mouse
	m.zones.SetEnabled(m.mouse)
	if m.mouse {
		m.notify(NoticeInfo, "Mouse capture on")
		return tea.EnableMouseCellMotion
	}
	m.notify(NoticeInfo, "Mouse capture off, terminal selection enabled")
	return tea.DisableMouse
}

func (m *Model) scroll(delta int) {
	if delta == 0 {
		return
	}
	m.buffer.Scroll(delta)
	m.follow = m.buffer.Offset() >= m.maxOffset()
	if m.follow {
		m.buffer.ScrollToEnd(m.outputRows())
	}
}

func (m *Model) maxOffset() int {
	return max(0, m.buffer.Len()-m.outputRows())
}

func (m *Model) click(msg tea.MouseMsg) {
	for i, stage := range m.pipeline.Stages() {
		if m.zones.Get(stageZoneID(stage.ID)).InBounds(msg) {
			m.pipeline.SetFocus(i)
			m.syncEditorFocus()
			return
		}
	}
}

// resizeOutput tells the executor the output panel changed height.
func (m *Model) resizeOutput() {
	m.exec.SetOutputSize(m.outputRows(), m.width)
	if m.follow {
		m.buffer.ScrollToEnd(m.outputRows())
	}
}

// execute supersedes the current run with the enabled stages.
func (m *Model) execute() tea.Cmd {
	m.notice = nil
	cmds := m.pipeline.Commands()
	chain := make(map[int]bool, len(cmds))
	for _, c := range cmds {
		chain[c.StageID] = true
	}
	for _, stage := range m.pipeline.Stages() {
		if stage.State.Phase == pipeline.PhaseRunning {
			_ = stage.Transition(pipeline.State{Phase: pipeline.PhaseKilled})
		}
		if chain[stage.ID] {
			_ = stage.Transition(pipeline.State{Phase: pipeline.PhaseSpawning})
		} else {
			stage.Reset()
		}
	}

	m.buffer.Reset()
	m.runSeq = m.buffer.NextSeq()
	m.follow = true

	handle, err := m.exec.Execute(cmds)
	m.gen = handle.Gen
	m.runID = handle.ID
	for _, id := range handle.StageIDs {
		if stage, ok := m.pipeline.Get(id); ok {
			_ = stage.Transition(pipeline.State{Phase: pipeline.PhaseRunning})
		}
	}

	if err != nil {
		m.running = false
		m.failSpawn(err)
		return nil
	}

	m.running = !handle.Empty()
	m.logger.Debug().Str("run_id", handle.ID).Uint64("gen", handle.Gen).Int("stages", len(handle.StageIDs)).Msg("run started")
	if m.running && !m.spinning {
		m.spinning = true
		return m.spinner.Tick
	}
	return nil
}

// failSpawn marks the stage that could not start and the ones that were
// already torn down.
func (m *Model) failSpawn(err error) {
	var serr *supervisor.Error
	if errors.As(err, &serr) {
		if stage, ok := m.pipeline.Get(serr.StageID); ok {
			_ = stage.Transition(pipeline.State{Phase: pipeline.PhaseSpawnFailed})
		}
	}
	for _, stage := range m.pipeline.Stages() {
		switch stage.State.Phase {
		case pipeline.PhaseRunning:
			_ = stage.Transition(pipeline.State{Phase: pipeline.PhaseKilled})
		case pipeline.PhaseSpawning:
			stage.Reset()
		}
	}
	m.logger.Warn().Err(err).Uint64("gen", m.gen).Msg("spawn failed")
	m.notify(NoticeError, err.Error())
}

// drainRunEvents consumes whatever the executor has ready without blocking.
func (m *Model) drainRunEvents() {
	ch := m.exec.Events()
	for i := 0; i < maxDrainPerUpdate; i++ {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.handleRunEvent(ev)
		default:
			return
		}
	}
}

func (m *Model) handleRunEvent(ev supervisor.Event) {
	if ev.Generation() != m.gen {
		m.stale++
		return
	}
	switch typed := ev.(type) {
	case supervisor.OutputEvent:
		m.buffer.PushAll(typed.Lines)
		if m.follow {
			m.buffer.ScrollToEnd(m.outputRows())
		}
	case supervisor.ExitEvent:
		if stage, ok := m.pipeline.Get(typed.StageID); ok {
			next := pipeline.Completed(typed.ExitCode)
			next.BrokenPipe = typed.BrokenPipe && !typed.Terminal
			if typed.Killed {
				next = pipeline.State{Phase: pipeline.PhaseKilled, ExitCode: typed.ExitCode}
			}
			_ = stage.Transition(next)
		}
		if err := typed.Err(); err != nil {
			m.notify(NoticeError, err.Error())
		}
	case supervisor.DoneEvent:
		m.running = false
		m.logger.Debug().Str("run_id", m.runID).Uint64("gen", m.gen).Msg("run finished")
	}
	m.dirty = true
}
