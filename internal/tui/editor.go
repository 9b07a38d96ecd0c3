package tui

import (
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/pipelab/internal/pipeline"
)

const (
	mainPrompt = "❯❯ "
	pipePrompt = "❚ "
)

// editorKeyMap is the textinput keymap minus everything the loop owns:
// ctrl+b, ctrl+d, up/down and suggestions.
func editorKeyMap() textinput.KeyMap {
	km := textinput.DefaultKeyMap
	km.CharacterBackward = key.NewBinding(key.WithKeys("left"))
	km.DeleteCharacterForward = key.NewBinding(key.WithKeys("delete"))
	km.Paste = key.NewBinding(key.WithDisabled())
	km.AcceptSuggestion = key.NewBinding(key.WithDisabled())
	km.NextSuggestion = key.NewBinding(key.WithDisabled())
	km.PrevSuggestion = key.NewBinding(key.WithDisabled())
	return km
}

// newEditor builds the line editor for one stage.
func newEditor(stage *pipeline.Stage, st styles) textinput.Model {
	ti := textinput.New()
	ti.KeyMap = editorKeyMap()
	ti.ShowSuggestions = false
	ti.Prompt = pipePrompt
	if stage.IsMain() {
		ti.Prompt = mainPrompt
		ti.Placeholder = "type a command, e.g. ls -la"
	}
	ti.PlaceholderStyle = st.prompt
	ti.SetValue(stage.Text)
	ti.Cursor.SetMode(cursor.CursorStatic)
	styleEditor(&ti, stage, false, st)
	return ti
}

func styleEditor(ti *textinput.Model, stage *pipeline.Stage, focused bool, st styles) {
	ti.PromptStyle = st.prompt
	if focused {
		ti.PromptStyle = st.promptFocused
	}
	ti.TextStyle = st.text
	if !stage.Enabled {
		ti.TextStyle = st.disabled
	}
}

// editKey sends one key to the focused stage's editor and copies the edited
// text back into the stage.
func (m *Model) editKey(msg tea.KeyMsg, times int) {
	stage := m.pipeline.Focused()
	ed, ok := m.editors[stage.ID]
	if !ok {
		return
	}
	for i := 0; i < times; i++ {
		ed, _ = ed.Update(msg)
	}
	m.editors[stage.ID] = ed
	if stage.Text != ed.Value() {
		stage.Text = ed.Value()
	}
}

// syncEditorFocus focuses the editor of the focused stage and blurs the rest.
func (m *Model) syncEditorFocus() {
	focusID := m.pipeline.Focused().ID
	for _, stage := range m.pipeline.Stages() {
		ed := m.editors[stage.ID]
		if stage.ID == focusID {
			ed.Focus()
		} else {
			ed.Blur()
		}
		styleEditor(&ed, stage, stage.ID == focusID, m.styles)
		m.editors[stage.ID] = ed
	}
}
