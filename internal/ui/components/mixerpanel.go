package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// InstanceRow is one mixer instance as the monitor shows it.
type InstanceRow struct {
	Index      int
	Port       string
	SampleRate int
	Grain      int
	Parent     int // -1 unless a sub-instance
	Sub        int // -1 if no sub is attached
	SubVolL    int
	SubVolR    int
	Grains     uint64
	Buffer     int
	Paused     bool
	Selected   bool
}

// MixerSnapshot is a point-in-time view of the audio context.
type MixerSnapshot struct {
	Capacity  int
	Instances []InstanceRow

	HeapName        string
	HeapBlocks      int
	HeapAllocations int
	HeapInUse       int
	HeapCapacity    int

	Regions     int
	RegionBytes int
	Mappings    int

	Decoders int
}

// MixerPanel renders a MixerSnapshot.
type MixerPanel struct {
	snap   MixerSnapshot
	width  int
	height int

	header   lipgloss.Style
	muted    lipgloss.Style
	selected lipgloss.Style
	paused   lipgloss.Style
}

// NewMixerPanel creates an empty panel.
func NewMixerPanel() MixerPanel {
	return MixerPanel{
		width:  40,
		height: 6,
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")).
			Bold(true),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")),
		selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7571F9")).
			Bold(true),
		paused: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")),
	}
}

// SetSnapshot replaces the displayed state.
func (p *MixerPanel) SetSnapshot(s MixerSnapshot) {
	p.snap = s
}

// Snapshot returns the displayed state.
func (p MixerPanel) Snapshot() MixerSnapshot {
	return p.snap
}

// SetSize sets the panel dimensions.
func (p *MixerPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Title returns the panel title with slot usage.
func (p MixerPanel) Title() string {
	return fmt.Sprintf("Mixer %d/%d", len(p.snap.Instances), p.snap.Capacity)
}

// View renders the heap summary followed by one row per instance.
func (p MixerPanel) View() string {
	s := p.snap
	lines := []string{
		p.muted.Render(fmt.Sprintf("heap %s: %s / %s in %d blocks, %d allocs",
			s.HeapName, formatBytes(s.HeapInUse), formatBytes(s.HeapCapacity), s.HeapBlocks, s.HeapAllocations)),
		p.muted.Render(fmt.Sprintf("regions %d (%s)  codec maps %d  decoders %d",
			s.Regions, formatBytes(s.RegionBytes), s.Mappings, s.Decoders)),
		p.header.Render(fmt.Sprintf("%-3s %-5s %6s %5s %-9s %8s %s", "#", "port", "rate", "grain", "sub", "grains", "buf")),
	}
	if len(s.Instances) == 0 {
		lines = append(lines, p.muted.Render("no instances"))
	}
	for _, in := range s.Instances {
		lines = append(lines, p.renderRow(in))
	}

	if p.height > 0 && len(lines) > p.height {
		lines = lines[:p.height]
	}
	return lipgloss.NewStyle().MaxWidth(p.width).Render(strings.Join(lines, "\n"))
}

func (p MixerPanel) renderRow(in InstanceRow) string {
	sub := "-"
	switch {
	case in.Parent >= 0:
		sub = fmt.Sprintf("in %d", in.Parent)
	case in.Sub >= 0:
		sub = fmt.Sprintf("%d@%x/%x", in.Sub, in.SubVolL, in.SubVolR)
	}
	grains := "-"
	buf := "-"
	if in.Parent < 0 {
		grains = fmt.Sprintf("%d", in.Grains)
		buf = fmt.Sprintf("%d", in.Buffer)
	}
	mark := " "
	if in.Selected {
		mark = "*"
	}
	row := fmt.Sprintf("%s%-2d %-5s %6d %5d %-9s %8s %s", mark, in.Index, in.Port, in.SampleRate, in.Grain, sub, grains, buf)
	switch {
	case in.Paused:
		return p.paused.Render(row + " paused")
	case in.Selected:
		return p.selected.Render(row)
	}
	return row
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
