package tui

// Rows outside the stage editors: the notification line and at least one
// output line, plus the help footer when shown.
const (
	notifyRows    = 1
	minOutputRows = 1
	helpRows      = 1
)

func reservedRows(showHelp bool) int {
	rows := notifyRows + minOutputRows
	if showHelp {
		rows += helpRows
	}
	return rows
}

// MaxStages returns how many stage rows fit in a terminal of the given height.
// It is never below one; main always stays.
func MaxStages(height int, showHelp bool) int {
	n := height - reservedRows(showHelp)
	if n < 1 {
		return 1
	}
	return n
}

// outputRows is the height of the output panel for the current stage count.
func (m *Model) outputRows() int {
	rows := m.height - notifyRows - m.pipeline.Len()
	if m.showHelp {
		rows -= helpRows
	}
	if rows < 0 {
		return 0
	}
	return rows
}

// applyResize records the new size and evicts stages from the end when they
// no longer fit. Eviction is silent; focus moves to main.
func (m *Model) applyResize(width, height int) {
	m.width, m.height = width, height

	if evicted := m.pipeline.TruncateTo(MaxStages(height, m.showHelp)); len(evicted) > 0 {
		for _, stage := range evicted {
			delete(m.editors, stage.ID)
		}
		m.logger.Debug().Int("evicted", len(evicted)).Int("height", height).Msg("stages evicted on resize")
		m.syncEditorFocus()
	}

	for id, ed := range m.editors {
		ed.Width = m.editorWidth()
		m.editors[id] = ed
	}

	m.help.Width = width
	m.resizeOutput()
}

// editorWidth is the visible text width of a stage editor: the row minus
// the prompt and the status badge.
func (m *Model) editorWidth() int {
	w := m.width - len([]rune(mainPrompt)) - badgeWidth - 1
	if w < 1 {
		return 1
	}
	return w
}
