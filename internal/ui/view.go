package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	// Minimum dimensions
	minWidth  = 60
	minHeight = 20

	libraryWidthPercent = 30
	footerHeight        = 1
	nowPlayingHeight    = 4
	progressHeight      = 5 // border 2, status, bar, loop marker
	mixerMinHeight      = 7
)

// View renders the entire UI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}
	if m.helpPopup.Visible() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.helpPopup.View())
	}

	libraryWidth, rightWidth, playlistHeight, mixerHeight := m.panelSizes()
	bodyHeight := m.height - footerHeight

	right := []string{
		m.renderPlaylist(rightWidth, playlistHeight),
		m.renderNowPlaying(rightWidth),
		m.renderProgress(rightWidth),
	}
	if mixerHeight > 0 {
		right = append(right, m.renderMixer(rightWidth, mixerHeight))
	}

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLibrary(libraryWidth, bodyHeight),
		" ",
		lipgloss.JoinVertical(lipgloss.Left, right...),
	)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter())
}

// panelSizes splits the window: the library on the left, the queue, now
// playing, progress and mixer panels stacked on the right.
func (m Model) panelSizes() (libraryWidth, rightWidth, playlistHeight, mixerHeight int) {
	libraryWidth = m.width * libraryWidthPercent / 100
	rightWidth = m.width - libraryWidth - 1

	rest := m.height - footerHeight - nowPlayingHeight - progressHeight
	if m.mixer != nil {
		mixerHeight = max(rest*40/100, mixerMinHeight)
	}
	playlistHeight = rest - mixerHeight
	return
}

// renderTooSmall renders a message when the terminal is too small.
func (m Model) renderTooSmall() string {
	msg := fmt.Sprintf("Terminal too small\nNeed at least %dx%d\nCurrent: %dx%d",
		minWidth, minHeight, m.width, m.height)
	return lipgloss.NewStyle().
		Foreground(ColorTextMuted).
		Render(msg)
}

// renderLibrary renders the left library panel.
func (m Model) renderLibrary(width, height int) string {
	return m.styles.RenderPanel("Library", m.browser.View(), m.focus == FocusBrowser, width, height)
}

// renderPlaylist renders the queue panel.
func (m Model) renderPlaylist(width, height int) string {
	return m.styles.RenderPanel(m.playlist.Title(), m.playlist.View(), m.focus == FocusPlaylist, width, height)
}

// renderMixer renders the instance and heap panel.
func (m Model) renderMixer(width, height int) string {
	return m.styles.RenderPanel(m.mixerPanel.Title(), m.mixerPanel.View(), false, width, height)
}

// renderNowPlaying renders the loaded track's header fields.
func (m Model) renderNowPlaying(width int) string {
	var content strings.Builder

	if t := m.currentTrack; t != nil {
		content.WriteString(m.styles.Field("Track:", m.styles.TextBold.Render(orUnknown(t.Title))))
		content.WriteString("\n")
		content.WriteString(m.styles.Field("Album:", m.styles.Text.Render(orUnknown(t.Album))))
		content.WriteString("\n")
		content.WriteString(m.styles.Field("Format:", m.styles.Text.Render(
			fmt.Sprintf("%s  %d ch  %d Hz", t.Format, t.Channels, t.SampleRate))))
		content.WriteString("\n")
		loop := "none"
		if t.HasLoop {
			loop = "from " + formatClock(t.LoopPoint)
		}
		content.WriteString(m.styles.Field("Loop:", m.styles.Text.Render(loop)))
	} else {
		content.WriteString(m.styles.TextMuted.Render("No track loaded"))
		content.WriteString("\n")
		content.WriteString(m.styles.TextMuted.Render("Queue a file from the library"))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(nowPlayingHeight).
		Padding(0, 1).
		Render(content.String())
}

// renderProgress renders playback status and the progress bar.
func (m Model) renderProgress(width int) string {
	detail := fmt.Sprintf(" | vol %d%%", int(m.playback.Volume*100+0.5))
	if m.playback.Units > 0 {
		detail += fmt.Sprintf(" | unit %d/%d | buf %d",
			m.playback.UnitsDecoded, m.playback.Units, m.playback.BufferIndex)
	}

	bar := m.progress
	bar.SetElapsed(m.playback.Position)
	bar.SetDuration(m.playback.Duration)

	content := m.styles.Status(m.playback.State) +
		m.styles.TextMuted.Render(detail) + "\n" + bar.View()

	return lipgloss.NewStyle().
		Width(width-2).
		Height(progressHeight-2).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Render(content)
}

// renderFooter renders the most recent error and the key hints.
func (m Model) renderFooter() string {
	var content string
	if m.lastError != "" && time.Since(m.errorTime) < errorTTL {
		content = m.styles.Error.Render("Error: "+m.lastError) + "  "
	}
	content += m.help.View(m.footerHelp())
	return lipgloss.NewStyle().MaxWidth(m.width).Render(content)
}

func orUnknown(s string) string {
	if s == "" {
		return "(Unknown)"
	}
	return s
}

// formatClock formats a duration as MM:SS.
func formatClock(d time.Duration) string {
	total := int(max(d, 0).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
