// Package pipeline models the editable list of stages the user builds.
//
// The first stage ("main") always exists. The execution chain is the ordered
// subsequence of enabled stages with non-blank text; toggling a stage only
// changes that flag and has no effect on processes until the next run.
package pipeline

import (
	"errors"
	"strings"
)

// MainID is the identity of the stage that can never be removed.
const MainID = 0

var (
	// ErrMainStage is returned when an operation would remove the main stage.
	ErrMainStage = errors.New("main stage cannot be removed")
	// ErrUnknownStage is returned for a stage ID not in the pipeline.
	ErrUnknownStage = errors.New("unknown stage")
)

// Stage is one command segment of the pipeline.
type Stage struct {
	ID      int
	Text    string
	Enabled bool
	State   State
}

// IsMain reports whether this is the main stage.
func (s *Stage) IsMain() bool { return s.ID == MainID }

// Transition moves the stage to next when the state machine allows it.
func (s *Stage) Transition(next State) error {
	if !s.State.CanTransition(next.Phase) {
		return &TransitionError{From: s.State, To: next}
	}
	s.State = next
	return nil
}

// Reset returns the stage to Idle regardless of its current state.
func (s *Stage) Reset() { s.State = Idle }

// Command is one element of an execution chain.
type Command struct {
	StageID int
	Text    string
}

// Pipeline is the ordered stage list plus the focused position.
type Pipeline struct {
	stages []*Stage
	focus  int
	nextID int
}

// New creates a pipeline containing only the main stage.
func New(mainText string) *Pipeline {
	return &Pipeline{
		stages: []*Stage{{ID: MainID, Text: mainText, Enabled: true, State: Idle}},
		nextID: MainID + 1,
	}
}

// Len returns the number of stages, always at least one.
func (p *Pipeline) Len() int { return len(p.stages) }

// Stages returns the stages in execution order. The slice must not be
// modified; the stages themselves may be.
func (p *Pipeline) Stages() []*Stage { return p.stages }

// At returns the stage at position i.
func (p *Pipeline) At(i int) *Stage {
	if i < 0 || i >= len(p.stages) {
		return nil
	}
	return p.stages[i]
}

// Get looks a stage up by ID.
func (p *Pipeline) Get(id int) (*Stage, bool) {
	for _, s := range p.stages {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Focus returns the focused position.
func (p *Pipeline) Focus() int { return p.focus }

// Focused returns the focused stage.
func (p *Pipeline) Focused() *Stage { return p.stages[p.focus] }

// SetFocus moves focus to position i, clamped to the stage range.
func (p *Pipeline) SetFocus(i int) {
	p.focus = clamp(i, 0, len(p.stages)-1)
}

// MoveFocus shifts focus by delta positions, clamped.
func (p *Pipeline) MoveFocus(delta int) bool {
	prev := p.focus
	p.SetFocus(p.focus + delta)
	return prev != p.focus
}

// Append adds an empty enabled stage at the end and focuses it.
func (p *Pipeline) Append() *Stage {
	s := &Stage{ID: p.nextID, Enabled: true, State: Idle}
	p.nextID++
	p.stages = append(p.stages, s)
	p.focus = len(p.stages) - 1
	return s
}

// DeleteFocused removes the focused stage and focuses the one before it.
func (p *Pipeline) DeleteFocused() (*Stage, error) {
	target := p.stages[p.focus]
	if target.IsMain() {
		return nil, ErrMainStage
	}
	p.stages = append(p.stages[:p.focus], p.stages[p.focus+1:]...)
	p.SetFocus(p.focus - 1)
	return target, nil
}

// ToggleFocused flips the enabled flag on the focused stage.
func (p *Pipeline) ToggleFocused() bool {
	s := p.stages[p.focus]
	s.Enabled = !s.Enabled
	return s.Enabled
}

// TruncateTo evicts stages from the end until at most n remain, never
// removing the main stage. When anything is evicted focus moves to main.
// It returns the evicted stages, most recently added first.
func (p *Pipeline) TruncateTo(n int) []*Stage {
	if n < 1 {
		n = 1
	}
	var evicted []*Stage
	for len(p.stages) > n {
		last := p.stages[len(p.stages)-1]
		if last.IsMain() {
			break
		}
		p.stages = p.stages[:len(p.stages)-1]
		evicted = append(evicted, last)
	}
	if len(evicted) > 0 {
		p.focus = 0
	}
	return evicted
}

// Commands returns the execution chain: enabled stages with non-blank text,
// in order.
func (p *Pipeline) Commands() []Command {
	cmds := make([]Command, 0, len(p.stages))
	for _, s := range p.stages {
		if !s.Enabled || strings.TrimSpace(s.Text) == "" {
			continue
		}
		cmds = append(cmds, Command{StageID: s.ID, Text: strings.TrimSpace(s.Text)})
	}
	return cmds
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
