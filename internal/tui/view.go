package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wrap"

	"github.com/tOgg1/pipelab/internal/pipeline"
)

const (
	badgeWidth = 8
	tabWidth   = 4
	ellipsis   = "…"
)

func stageZoneID(id int) string {
	return "stage-" + strconv.Itoa(id)
}

// render builds the full frame: status line, stage editors, output panel
// and the optional help footer. It only reads model state.
func (m *Model) render() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	rows := make([]string, 0, m.height)
	rows = append(rows, m.renderStatus())
	for _, stage := range m.pipeline.Stages() {
		rows = append(rows, m.renderStage(stage))
	}
	rows = append(rows, m.renderOutput(m.outputRows())...)
	if m.showHelp {
		rows = append(rows, ansi.Truncate(m.help.View(m.keys), m.width, ellipsis))
	}
	return strings.Join(rows, "\n")
}

// renderStatus shows the notification if there is one, otherwise the
// buffer position while the user is scrolled back.
func (m *Model) renderStatus() string {
	if m.notice != nil {
		text := strings.ReplaceAll(m.notice.Text, "\n", " ")
		style := m.styles.notifyInfo
		if m.notice.Kind == NoticeError {
			style = m.styles.notifyError
		}
		return style.Render(ansi.Truncate(text, m.width, ellipsis))
	}
	if !m.follow && m.buffer.Len() > 0 {
		info := fmt.Sprintf("↑ line %d/%d", m.buffer.Offset()+1, m.buffer.Len())
		if dropped := m.buffer.Dropped(m.runSeq); dropped > 0 {
			info += fmt.Sprintf(" · %d lines dropped", dropped)
		}
		return m.styles.scrollInfo.Render(ansi.Truncate(info, m.width, ellipsis))
	}
	return ""
}

func (m *Model) renderStage(stage *pipeline.Stage) string {
	ed := m.editors[stage.ID]
	row := ed.View() + " " + m.renderBadge(stage)
	row = ansi.Truncate(row, m.width, "")
	return m.zones.Mark(stageZoneID(stage.ID), row)
}

// renderBadge is the fixed-width phase marker after each editor.
func (m *Model) renderBadge(stage *pipeline.Stage) string {
	var text string
	style := m.styles.badgeMuted
	switch stage.State.Phase {
	case pipeline.PhaseSpawning:
		text = "…"
	case pipeline.PhaseRunning:
		text = m.spinner.View() + " run"
		style = m.styles.badgeRunning
	case pipeline.PhaseCompleted:
		if stage.State.Succeeded() {
			text = "✓"
			style = m.styles.badgeOK
		} else {
			text = "✗ " + strconv.Itoa(stage.State.ExitCode)
			style = m.styles.badgeFailed
		}
	case pipeline.PhaseKilled:
		text = "killed"
	case pipeline.PhaseSpawnFailed:
		text = "failed"
		style = m.styles.badgeFailed
	}
	if !stage.Enabled && text == "" {
		text = "off"
	}
	return style.Render(padRight(ansi.Truncate(text, badgeWidth, ""), badgeWidth))
}

// renderOutput returns exactly rows lines. While following, the panel shows
// the tail of the buffer; otherwise it starts at the scroll offset.
func (m *Model) renderOutput(rows int) []string {
	if rows <= 0 {
		return nil
	}
	var lines []string
	if m.follow {
		for i := m.buffer.Len() - 1; i >= 0 && len(lines) < rows; i-- {
			rec, _ := m.buffer.At(i)
			lines = append(wrapLine(rec.Text, m.width), lines...)
		}
		if len(lines) > rows {
			lines = lines[len(lines)-rows:]
		}
	} else {
		for _, rec := range m.buffer.Window(rows) {
			lines = append(lines, wrapLine(rec.Text, m.width)...)
			if len(lines) >= rows {
				break
			}
		}
		if len(lines) > rows {
			lines = lines[:rows]
		}
	}

	out := make([]string, rows)
	for i, line := range lines {
		out[i] = m.styles.output.Render(line)
	}
	return out
}

// wrapLine hard-wraps one output line to the panel width.
func wrapLine(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	text = strings.ReplaceAll(text, "\t", strings.Repeat(" ", tabWidth))
	if ansi.StringWidth(text) <= width {
		return []string{text}
	}
	return strings.Split(wrap.String(text, width), "\n")
}

func padRight(s string, width int) string {
	if w := ansi.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
