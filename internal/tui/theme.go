package tui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type palette struct {
	Name      string
	Text      string
	TextMuted string
	Border    string
	Accent    string
	Focus     string
	Success   string
	Warning   string
	Error     string
	Info      string
}

var palettes = map[string]palette{
	"default": {
		Name:      "default",
		Text:      "#E6EDF3",
		TextMuted: "#8B9AAE",
		Border:    "#223043",
		Accent:    "#5B8DEF",
		Focus:     "#7AA2F7",
		Success:   "#3FB950",
		Warning:   "#D29922",
		Error:     "#F85149",
		Info:      "#58A6FF",
	},
	"high-contrast": {
		Name:      "high-contrast",
		Text:      "#FFFFFF",
		TextMuted: "#C0C0C0",
		Border:    "#FFFFFF",
		Accent:    "#00A2FF",
		Focus:     "#FFD400",
		Success:   "#00FF5A",
		Warning:   "#FFB000",
		Error:     "#FF4040",
		Info:      "#66CCFF",
	},
	"ocean": {
		Name:      "ocean",
		Text:      "#D8ECF7",
		TextMuted: "#78A2B8",
		Border:    "#1E4A61",
		Accent:    "#3DD3FF",
		Focus:     "#71E0FF",
		Success:   "#55E39F",
		Warning:   "#FFC857",
		Error:     "#FF6B6B",
		Info:      "#4CC9F0",
	},
	"sunset": {
		Name:      "sunset",
		Text:      "#F6E7E4",
		TextMuted: "#C89A90",
		Border:    "#5D2E3F",
		Accent:    "#FF8C5A",
		Focus:     "#FFB077",
		Success:   "#7ED957",
		Warning:   "#FFD166",
		Error:     "#FF5D73",
		Info:      "#7FD1FF",
	},
}

// ThemeNames lists the known palettes.
func ThemeNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupPalette(name string) (palette, bool) {
	p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// styles are the lipgloss styles derived from a palette.
type styles struct {
	prompt        lipgloss.Style
	promptFocused lipgloss.Style
	text          lipgloss.Style
	disabled      lipgloss.Style
	badgeRunning  lipgloss.Style
	badgeOK       lipgloss.Style
	badgeFailed   lipgloss.Style
	badgeMuted    lipgloss.Style
	output        lipgloss.Style
	scrollInfo    lipgloss.Style
	notifyError   lipgloss.Style
	notifyInfo    lipgloss.Style
	help          lipgloss.Style
}

func newStyles(p palette) styles {
	return styles{
		prompt:        lipgloss.NewStyle().Foreground(lipgloss.Color(p.TextMuted)),
		promptFocused: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Focus)).Bold(true),
		text:          lipgloss.NewStyle().Foreground(lipgloss.Color(p.Text)),
		disabled:      lipgloss.NewStyle().Foreground(lipgloss.Color(p.TextMuted)).Strikethrough(true),
		badgeRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)),
		badgeOK:       lipgloss.NewStyle().Foreground(lipgloss.Color(p.Success)),
		badgeFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error)).Bold(true),
		badgeMuted:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.TextMuted)),
		output:        lipgloss.NewStyle().Foreground(lipgloss.Color(p.Text)),
		scrollInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Warning)),
		notifyError:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error)).Bold(true),
		notifyInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Info)),
		help:          lipgloss.NewStyle().Foreground(lipgloss.Color(p.TextMuted)),
	}
}
