package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/pipelab/internal/events"
)

type keyMap struct {
	Run      key.Binding
	Quit     key.Binding
	Mouse    key.Binding
	Add      key.Binding
	Delete   key.Binding
	Toggle   key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Run:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Mouse:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "mouse")),
		Add:      key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "add stage")),
		Delete:   key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete stage")),
		Toggle:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "toggle stage")),
		Up:       key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "prev stage")),
		Down:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next stage")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Add, k.Delete, k.Toggle, k.Mouse, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Add, k.Delete, k.Toggle},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Mouse, k.Quit},
	}
}

// classify tells the input batcher how each key may be merged.
func (k keyMap) classify(msg tea.KeyMsg) events.Class {
	switch {
	case key.Matches(msg, k.Up):
		return events.ClassFocusUp
	case key.Matches(msg, k.Down):
		return events.ClassFocusDown
	case key.Matches(msg, k.PageUp):
		return events.ClassPageUp
	case key.Matches(msg, k.PageDown):
		return events.ClassPageDown
	case key.Matches(msg, k.Mouse), key.Matches(msg, k.Toggle):
		return events.ClassToggle
	case key.Matches(msg, k.Run), key.Matches(msg, k.Quit):
		return events.ClassOnce
	}
	if (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace) && !msg.Alt {
		return events.ClassText
	}
	return events.ClassOther
}
