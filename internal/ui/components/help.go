package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpPopup is a full-screen help overlay that displays all keybindings.
type HelpPopup struct {
	viewport viewport.Model
	visible  bool
	width    int
	height   int

	// Styles
	borderStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	categoryStyle lipgloss.Style
	keyStyle      lipgloss.Style
	descStyle     lipgloss.Style
	footerStyle   lipgloss.Style
}

// HelpKeyMap defines key bindings for the help popup.
type HelpKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Close    key.Binding
}

// DefaultHelpKeyMap returns the default help popup key bindings.
func DefaultHelpKeyMap() HelpKeyMap {
	return HelpKeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Close: key.NewBinding(
			key.WithKeys("?", "esc", "enter", "q"),
			key.WithHelp("?/esc/enter", "close"),
		),
	}
}

// NewHelpPopup creates a new help popup.
func NewHelpPopup() HelpPopup {
	vp := viewport.New(50, 20)
	vp.MouseWheelEnabled = true

	h := HelpPopup{
		viewport: vp,
		visible:  false,
		width:    60,
		height:   24,
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7571F9")).
			Padding(0, 1),
		titleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7571F9")).
			Bold(true),
		categoryStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true),
		keyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7571F9")).
			Bold(true),
		descStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")),
		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")).
			Italic(true),
	}
	h.viewport.SetContent(h.buildHelpContent())
	h.SetSize(h.width, h.height)
	return h
}

// Update handles messages for the help popup.
func (h HelpPopup) Update(msg tea.Msg) (HelpPopup, tea.Cmd) {
	if !h.visible {
		return h, nil
	}

	keyMap := DefaultHelpKeyMap()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyMap.Close):
			h.visible = false
			return h, nil
		case key.Matches(msg, keyMap.Up):
			h.viewport.ScrollUp(1)
		case key.Matches(msg, keyMap.Down):
			h.viewport.ScrollDown(1)
		case key.Matches(msg, keyMap.PageUp):
			h.viewport.PageUp()
		case key.Matches(msg, keyMap.PageDown):
			h.viewport.PageDown()
		}
	}

	var cmd tea.Cmd
	h.viewport, cmd = h.viewport.Update(msg)
	return h, cmd
}

// View renders the help popup as an overlay.
func (h HelpPopup) View() string {
	if !h.visible {
		return ""
	}

	w, ht := h.popupSize()
	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Width(w-4).Align(lipgloss.Center).Render(h.titleStyle.Render("Help")),
		h.viewport.View(),
		lipgloss.NewStyle().Width(w-4).Align(lipgloss.Center).Render(h.footerStyle.Render("Press ? or Esc to close")),
	)
	return h.borderStyle.Width(w - 2).Height(ht - 2).Render(body)
}

// popupSize is the outer popup size for the current screen.
func (h HelpPopup) popupSize() (int, int) {
	w := max(min(h.width*70/100, 60), 40)
	ht := max(min(h.height*80/100, 30), 15)
	return w, ht
}

// helpSections lists the bindings shown in the popup, grouped by panel.
var helpSections = []struct {
	name string
	keys [][2]string
}{
	{"Global", [][2]string{
		{"?", "Toggle this help"},
		{"q", "Quit"},
		{"Tab", "Switch panel focus"},
	}},
	{"Playback", [][2]string{
		{"Space", "Play/Pause"},
		{"n / N", "Next / previous in queue"},
		{"s", "Stop and rewind"},
		{"f / b", "Seek forward / back 5s"},
		{"+ / -", "Output volume"},
	}},
	{"Mixer", [][2]string{
		{"i", "Select next instance"},
		{"p", "Pause/resume its render"},
	}},
	{"Library", [][2]string{
		{"j/k", "Navigate"},
		{"g/G", "Top / bottom"},
		{"Enter/l", "Expand, or queue a track"},
		{"Backspace/h", "Collapse or go to parent"},
		{"a", "Queue album or format"},
		{"R", "Rescan"},
	}},
	{"Queue", [][2]string{
		{"j/k", "Navigate"},
		{"Enter/l", "Play selected track"},
		{"d / D", "Remove / clear"},
		{"K / J", "Move up / down"},
		{"r", "Shuffle"},
		{"m", "Loop mode (- / 1 / A)"},
	}},
}

// buildHelpContent creates the help text content.
func (h HelpPopup) buildHelpContent() string {
	var b strings.Builder
	for i, section := range helpSections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(h.categoryStyle.Render(section.name))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", 35))
		b.WriteString("\n")
		for _, kv := range section.keys {
			b.WriteString(lipgloss.NewStyle().Width(14).Render(h.keyStyle.Render(kv[0])))
			b.WriteString(h.descStyle.Render(kv[1]))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// SetSize sets the available screen size for the help popup.
func (h *HelpPopup) SetSize(width, height int) {
	h.width = width
	h.height = height
	w, ht := h.popupSize()
	// border 2, padding 2; title and footer lines
	h.viewport.Width = w - 4
	h.viewport.Height = ht - 4
}

// Show makes the help popup visible.
func (h *HelpPopup) Show() {
	h.visible = true
	h.viewport.GotoTop()
}

// Hide makes the help popup invisible.
func (h *HelpPopup) Hide() {
	h.visible = false
}

// Visible returns whether the help popup is visible.
func (h HelpPopup) Visible() bool {
	return h.visible
}

// Toggle toggles the visibility of the help popup.
func (h *HelpPopup) Toggle() {
	if h.visible {
		h.Hide()
	} else {
		h.Show()
	}
}
