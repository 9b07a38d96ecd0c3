// Package events batches terminal input between operate ticks.
//
// Input messages are queued as they arrive and drained once per tick. The
// drained batch is coalesced so that a burst of keystrokes, wheel notches or
// resizes is applied as a handful of actions instead of one recomputation
// per message.
package events

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Class tells Coalesce how a key may be merged with its neighbours.
type Class int

const (
	// ClassOther keys repeat: n identical adjacent keys become one action
	// with Count n.
	ClassOther Class = iota
	// ClassText keys carry printable runes; adjacent ones are concatenated.
	ClassText
	// ClassFocusUp and ClassFocusDown fold into one net focus movement.
	ClassFocusUp
	ClassFocusDown
	// ClassPageUp and ClassPageDown fold into one net scroll in pages.
	ClassPageUp
	ClassPageDown
	// ClassToggle keys cancel out in pairs.
	ClassToggle
	// ClassOnce keys collapse to a single occurrence.
	ClassOnce
)

// Classifier maps a key to its Class.
type Classifier func(tea.KeyMsg) Class

// Kind is the type of a coalesced action.
type Kind int

const (
	KindKey Kind = iota
	KindText
	KindFocus
	KindScroll
	KindResize
	KindClick
)

// Action is one unit of work for the event loop.
type Action struct {
	Kind Kind
	// Key is the representative key for KindKey, applied Count times.
	Key   tea.KeyMsg
	Count int
	// Runes is the merged text for KindText.
	Runes []rune
	// Delta is the net focus movement (KindFocus) or the net wheel
	// movement in lines (KindScroll). Negative moves up.
	Delta int
	// Pages is the net page movement for KindScroll.
	Pages int
	// Width and Height are the final terminal size for KindResize.
	Width  int
	Height int
	// Mouse is the click for KindClick.
	Mouse tea.MouseMsg
}

// Queue holds input messages between ticks. It is owned by the event loop.
type Queue struct {
	pending []tea.Msg
}

// Push appends a message.
func (q *Queue) Push(msg tea.Msg) {
	q.pending = append(q.pending, msg)
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Drain returns the queued messages and empties the queue.
func (q *Queue) Drain() []tea.Msg {
	msgs := q.pending
	q.pending = nil
	return msgs
}

// Accepts reports whether msg is input that should be queued.
func Accepts(msg tea.Msg) bool {
	switch msg.(type) {
	case tea.KeyMsg, tea.MouseMsg, tea.WindowSizeMsg:
		return true
	default:
		return false
	}
}

// Coalesce folds a drained batch into actions, preserving the relative order
// of anything that is not merged. Only the last resize of the batch is kept.
func Coalesce(msgs []tea.Msg, classify Classifier) []Action {
	var actions []Action
	lastSize := -1

	last := func() *Action {
		if len(actions) == 0 {
			return nil
		}
		return &actions[len(actions)-1]
	}

	for _, msg := range msgs {
		switch m := msg.(type) {
		case tea.WindowSizeMsg:
			if lastSize >= 0 {
				actions = append(actions[:lastSize], actions[lastSize+1:]...)
			}
			actions = append(actions, Action{Kind: KindResize, Width: m.Width, Height: m.Height})
			lastSize = len(actions) - 1

		case tea.MouseMsg:
			switch {
			case m.Button == tea.MouseButtonWheelUp || m.Button == tea.MouseButtonWheelDown:
				delta := 1
				if m.Button == tea.MouseButtonWheelUp {
					delta = -1
				}
				if prev := last(); prev != nil && prev.Kind == KindScroll {
					prev.Delta += delta
				} else {
					actions = append(actions, Action{Kind: KindScroll, Delta: delta})
				}
			case m.Action == tea.MouseActionPress && m.Button == tea.MouseButtonLeft:
				actions = append(actions, Action{Kind: KindClick, Mouse: m})
			}

		case tea.KeyMsg:
			class := classify(m)
			prev := last()
			switch class {
			case ClassText:
				runes := m.Runes
				if m.Type == tea.KeySpace && len(runes) == 0 {
					runes = []rune{' '}
				}
				if prev != nil && prev.Kind == KindText {
					prev.Runes = append(prev.Runes, runes...)
				} else {
					actions = append(actions, Action{Kind: KindText, Runes: append([]rune(nil), runes...)})
				}
			case ClassFocusUp, ClassFocusDown:
				delta := 1
				if class == ClassFocusUp {
					delta = -1
				}
				if prev != nil && prev.Kind == KindFocus {
					prev.Delta += delta
				} else {
					actions = append(actions, Action{Kind: KindFocus, Delta: delta})
				}
			case ClassPageUp, ClassPageDown:
				pages := 1
				if class == ClassPageUp {
					pages = -1
				}
				if prev != nil && prev.Kind == KindScroll {
					prev.Pages += pages
				} else {
					actions = append(actions, Action{Kind: KindScroll, Pages: pages})
				}
			default:
				if prev != nil && prev.Kind == KindKey && prev.Key.String() == m.String() {
					if class != ClassOnce {
						prev.Count++
					}
					continue
				}
				actions = append(actions, Action{Kind: KindKey, Key: m, Count: 1})
			}
		}
	}

	return prune(actions, classify)
}

// prune drops actions that net out to nothing.
func prune(actions []Action, classify Classifier) []Action {
	out := actions[:0]
	for _, a := range actions {
		switch a.Kind {
		case KindFocus:
			if a.Delta == 0 {
				continue
			}
		case KindScroll:
			if a.Delta == 0 && a.Pages == 0 {
				continue
			}
		case KindKey:
			if classify(a.Key) == ClassToggle {
				if a.Count%2 == 0 {
					continue
				}
				a.Count = 1
			}
		}
		out = append(out, a)
	}
	return out
}
