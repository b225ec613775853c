// Package ui is the terminal monitor: library tree, play queue, now playing
// panel and a live view of the mixer instances and heap.
package ui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/dewi-tim/sasmux/internal/player"
)

// Palette.
var (
	ColorPrimary   = lipgloss.Color("#7571F9")
	ColorSecondary = lipgloss.Color("#EE6FF8")
	ColorMuted     = lipgloss.Color("#606060")

	ColorPlaying = lipgloss.Color("#04B575")
	ColorPaused  = lipgloss.Color("#FFA500")
	ColorStopped = lipgloss.Color("#FF5555")
	ColorError   = ColorStopped

	ColorText      = lipgloss.Color("#FAFAFA")
	ColorTextMuted = lipgloss.Color("#A0A0A0")
)

// stateLook is how a playback state is drawn in the progress panel.
type stateLook struct {
	icon  string
	style lipgloss.Style
}

// Styles contains all the styles used in the UI.
type Styles struct {
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	Text      lipgloss.Style
	TextMuted lipgloss.Style
	TextBold  lipgloss.Style
	Error     lipgloss.Style

	FooterKey  lipgloss.Style
	FooterDesc lipgloss.Style

	states map[player.PlayState]stateLook
}

// DefaultStyles returns the default styles for the UI.
func DefaultStyles() Styles {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return Styles{
		Title:      fg(ColorPrimary).Bold(true),
		TitleMuted: fg(ColorTextMuted),
		Text:       fg(ColorText),
		TextMuted:  fg(ColorTextMuted),
		TextBold:   fg(ColorText).Bold(true),
		Error:      fg(ColorError).Bold(true),
		FooterKey:  fg(ColorPrimary).Bold(true),
		FooterDesc: fg(ColorTextMuted),
		states: map[player.PlayState]stateLook{
			player.StatePlaying: {">", fg(ColorPlaying).Bold(true)},
			player.StatePaused:  {"||", fg(ColorPaused).Bold(true)},
			player.StateStopped: {"[]", fg(ColorStopped).Bold(true)},
			player.StateEnded:   {"[.]", fg(ColorStopped).Bold(true)},
		},
	}
}

// Status renders the icon and name of a playback state.
func (s Styles) Status(state player.PlayState) string {
	look, ok := s.states[state]
	if !ok {
		look = s.states[player.StateStopped]
	}
	return look.style.Render(look.icon + " " + state.String())
}

// Field renders a muted label followed by value.
func (s Styles) Field(label, value string) string {
	return s.TextMuted.Render(label) + " " + value
}

// ApplyHelp styles the footer help view.
func (s Styles) ApplyHelp(h *help.Model) {
	h.ShortSeparator = " "
	h.Styles.ShortKey = s.FooterKey
	h.Styles.ShortDesc = s.FooterDesc
	h.Styles.ShortSeparator = s.FooterDesc
	h.Styles.Ellipsis = s.FooterDesc
}

// RenderPanel draws content under title inside a rounded border. width and
// height are the outer dimensions; content is clipped or padded to fit.
func (s Styles) RenderPanel(title, content string, focused bool, width, height int) string {
	titleStyle, border := s.TitleMuted, ColorMuted
	if focused {
		titleStyle, border = s.Title, ColorPrimary
	}
	innerW, innerH := max(width-2, 1), max(height-2, 1)

	body := lipgloss.NewStyle().
		Height(max(innerH-1, 1)).
		MaxHeight(max(innerH-1, 1)).
		Render(content)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(innerW).
		Height(innerH).
		MaxHeight(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body))
}
