// Package components provides the panels of the sasmux monitor.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// timeWidth is the width of one "MM:SS" label.
const timeWidth = 5

// ProgressBar wraps the bubbles progress component with time display.
type ProgressBar struct {
	progress progress.Model
	elapsed  time.Duration
	duration time.Duration
	loop     time.Duration // loop start, 0 if the track has none
	width    int

	TimeStyle lipgloss.Style
	LoopStyle lipgloss.Style
}

// NewProgressBar creates a new progress bar with default styling.
func NewProgressBar() ProgressBar {
	p := progress.New(
		progress.WithoutPercentage(),
		progress.WithSolidFill("#7571F9"),
		progress.WithFillCharacters('█', '░'),
	)
	p.EmptyColor = "#606060"

	b := ProgressBar{
		progress:  p,
		TimeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0")),
		LoopStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
	}
	b.SetWidth(40)
	return b
}

// SetWidth sets the total width available for the bar and both time labels.
func (p *ProgressBar) SetWidth(width int) {
	p.width = width
	barWidth := width - 2*timeWidth - 2
	if barWidth < 5 {
		barWidth = 5
	}
	p.progress.Width = barWidth
}

// Width returns the width the bar was last sized to.
func (p ProgressBar) Width() int {
	return p.width
}

// SetElapsed sets the current elapsed time.
func (p *ProgressBar) SetElapsed(d time.Duration) {
	p.elapsed = d
}

// SetDuration sets the total duration.
func (p *ProgressBar) SetDuration(d time.Duration) {
	p.duration = d
}

// SetLoop marks where the track's loop region starts. Zero clears it.
func (p *ProgressBar) SetLoop(start time.Duration) {
	p.loop = start
}

// Update updates the progress bar state.
func (p ProgressBar) Update(msg tea.Msg) (ProgressBar, tea.Cmd) {
	m, cmd := p.progress.Update(msg)
	p.progress = m.(progress.Model)
	return p, cmd
}

// Percent returns elapsed over duration clamped to [0, 1].
func (p ProgressBar) Percent() float64 {
	if p.duration <= 0 {
		return 0
	}
	return clampUnit(float64(p.elapsed) / float64(p.duration))
}

// View renders "01:23 [bar] 03:45", with the loop start underneath when set.
func (p ProgressBar) View() string {
	line := fmt.Sprintf("%s %s %s",
		p.TimeStyle.Render(formatDuration(p.elapsed)),
		p.progress.ViewAs(p.Percent()),
		p.TimeStyle.Render(formatDuration(p.duration)),
	)
	if p.loop <= 0 || p.duration <= 0 {
		return line
	}
	// Caret under the bar column where the loop begins.
	col := timeWidth + 1 + int(float64(p.progress.Width-1)*clampUnit(float64(p.loop)/float64(p.duration)))
	marker := fmt.Sprintf("%*s", col+1, "^")
	return line + "\n" + p.LoopStyle.Render(marker+" loop "+formatDuration(p.loop))
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// formatDuration formats a duration as MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
