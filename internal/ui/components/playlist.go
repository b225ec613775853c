package components

import (
	"fmt"
	"math/rand/v2"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dewi-tim/sasmux/internal/library"
)

// PlaylistKeyMap defines keybindings for the playlist component.
type PlaylistKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Select   key.Binding
	Remove   key.Binding
	Clear    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Shuffle  key.Binding
	LoopMode key.Binding
}

// DefaultPlaylistKeyMap returns the default keybindings for the playlist.
func DefaultPlaylistKeyMap() PlaylistKeyMap {
	return PlaylistKeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", "l"),
			key.WithHelp("enter/l", "play"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "remove"),
		),
		Clear: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "clear"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("K"),
			key.WithHelp("K", "move up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("J"),
			key.WithHelp("J", "move down"),
		),
		Shuffle: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "shuffle"),
		),
		LoopMode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "loop mode"),
		),
	}
}

// LoopMode represents the playlist loop behavior.
type LoopMode int

const (
	LoopNone LoopMode = iota // Stop at the end of the queue
	LoopOne                  // Repeat the current track
	LoopAll                  // Wrap around the queue
)

// Playlist is the queue of tracks to play.
type Playlist struct {
	table   table.Model
	tracks  []library.Track
	current int // Currently playing index (-1 if none)
	focused bool

	keyMap   PlaylistKeyMap
	loopMode LoopMode

	width  int
	height int
}

// NewPlaylist creates a new Playlist component.
func NewPlaylist() Playlist {
	t := table.New(
		table.WithColumns(playlistColumns(40)),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(5),
	)

	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#A0A0A0")).
		Padding(0, 1)
	s.Cell = lipgloss.NewStyle().
		Padding(0, 1)
	s.Selected = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7571F9"))
	t.SetStyles(s)

	return Playlist{
		table:   t,
		current: -1,
		keyMap:  DefaultPlaylistKeyMap(),
		width:   40,
		height:  10,
	}
}

// playlistColumns splits width between #, Duration, Title and Format.
func playlistColumns(width int) []table.Column {
	const numWidth, durationWidth = 5, 8
	formatWidth := max(width*20/100, 8)
	titleWidth := max(width-numWidth-durationWidth-formatWidth, 10)
	return []table.Column{
		{Title: "#", Width: numWidth},
		{Title: "Duration", Width: durationWidth},
		{Title: "Title", Width: titleWidth},
		{Title: "Format", Width: formatWidth},
	}
}

// Update handles navigation while focused. Queue editing keys are left to
// the owning model so it can keep the player in step.
func (p Playlist) Update(msg tea.Msg) (Playlist, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		var cmd tea.Cmd
		p.table, cmd = p.table.Update(msg)
		return p, cmd
	}
	if !p.focused {
		return p, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, p.keyMap.Up):
			p.table.MoveUp(1)
		case key.Matches(msg, p.keyMap.Down):
			p.table.MoveDown(1)
		case key.Matches(msg, p.keyMap.Top):
			p.table.GotoTop()
		case key.Matches(msg, p.keyMap.Bottom):
			p.table.GotoBottom()
		case key.Matches(msg, p.keyMap.PageUp):
			p.table.MoveUp(p.table.Height())
		case key.Matches(msg, p.keyMap.PageDown):
			p.table.MoveDown(p.table.Height())
		}
	}
	return p, nil
}

// View renders the playlist.
func (p Playlist) View() string {
	return p.table.View()
}

// SetSize sets the size of the playlist component.
func (p *Playlist) SetSize(width, height int) {
	p.width = width
	p.height = height

	available := max(width-6, 30) // borders and cell padding
	p.table.SetColumns(playlistColumns(available))
	p.table.SetWidth(available)
	p.table.SetHeight(max(height-4, 1))
}

// Focus sets the playlist to focused state.
func (p *Playlist) Focus() {
	p.focused = true
	p.table.Focus()
}

// Blur removes focus from the playlist.
func (p *Playlist) Blur() {
	p.focused = false
	p.table.Blur()
}

// Focused returns whether the playlist is focused.
func (p Playlist) Focused() bool {
	return p.focused
}

// AddTrack appends one track.
func (p *Playlist) AddTrack(track library.Track) {
	p.tracks = append(p.tracks, track)
	p.updateTableRows()
}

// AddTracks appends tracks in order.
func (p *Playlist) AddTracks(tracks []library.Track) {
	p.tracks = append(p.tracks, tracks...)
	p.updateTableRows()
}

// RemoveSelected removes the highlighted track. Removing the playing track
// leaves nothing marked current.
func (p *Playlist) RemoveSelected() {
	idx := p.table.Cursor()
	if idx < 0 || idx >= len(p.tracks) {
		return
	}
	p.tracks = append(p.tracks[:idx], p.tracks[idx+1:]...)

	switch {
	case idx < p.current:
		p.current--
	case idx == p.current:
		p.current = -1
	}

	p.updateTableRows()
	if idx >= len(p.tracks) && len(p.tracks) > 0 {
		p.table.SetCursor(len(p.tracks) - 1)
	}
}

// Clear removes all tracks from the playlist.
func (p *Playlist) Clear() {
	p.tracks = nil
	p.current = -1
	p.updateTableRows()
}

// SetCurrentTrack marks index as playing; out of range clears the mark.
func (p *Playlist) SetCurrentTrack(index int) {
	if index < -1 || index >= len(p.tracks) {
		index = -1
	}
	p.current = index
	p.updateTableRows()
}

// SelectedIndex returns the index of the highlighted track.
func (p Playlist) SelectedIndex() int {
	return p.table.Cursor()
}

// GetTrack returns a copy of the track at index, or nil if out of bounds.
func (p Playlist) GetTrack(index int) *library.Track {
	if index < 0 || index >= len(p.tracks) {
		return nil
	}
	track := p.tracks[index]
	return &track
}

// SelectedTrack returns a copy of the highlighted track, or nil.
func (p Playlist) SelectedTrack() *library.Track {
	return p.GetTrack(p.SelectedIndex())
}

// CurrentTrack returns a copy of the playing track, or nil.
func (p Playlist) CurrentTrack() *library.Track {
	return p.GetTrack(p.current)
}

// CurrentIndex returns the playing index (-1 if none).
func (p Playlist) CurrentIndex() int {
	return p.current
}

// Len returns the number of queued tracks.
func (p Playlist) Len() int {
	return len(p.tracks)
}

// Tracks returns a copy of the queue.
func (p Playlist) Tracks() []library.Track {
	return append([]library.Track(nil), p.tracks...)
}

// IsEmpty returns true if the playlist has no tracks.
func (p Playlist) IsEmpty() bool {
	return len(p.tracks) == 0
}

// updateTableRows syncs the table rows with the queue.
func (p *Playlist) updateTableRows() {
	cursor := p.table.Cursor()

	rows := make([]table.Row, len(p.tracks))
	for i, track := range p.tracks {
		num := fmt.Sprintf(" %d", i+1)
		if i == p.current {
			num = fmt.Sprintf(">%d", i+1)
		}
		rows[i] = table.Row{num, formatDuration(track.Duration), track.Title, track.Format}
	}
	p.table.SetRows(rows)

	if cursor >= 0 && cursor < len(rows) {
		p.table.SetCursor(cursor)
	} else if len(rows) > 0 {
		p.table.SetCursor(0)
	}
}

// Title returns the title for the playlist panel.
func (p Playlist) Title() string {
	mode := "[" + p.LoopModeString() + "]"
	switch {
	case len(p.tracks) == 0:
		return "Queue " + mode
	case p.current >= 0:
		return fmt.Sprintf("Queue %d/%d %s", p.current+1, len(p.tracks), mode)
	default:
		return fmt.Sprintf("Queue %d %s", len(p.tracks), mode)
	}
}

// KeyMap returns the playlist's keymap for help display.
func (p Playlist) KeyMap() PlaylistKeyMap {
	return p.keyMap
}

// NextTrack advances the current mark and returns it, or -1 at the end of
// the queue. LoopAll wraps to the start.
func (p *Playlist) NextTrack() int {
	if len(p.tracks) == 0 {
		return -1
	}
	switch {
	case p.current < 0:
		p.current = 0
	case p.current < len(p.tracks)-1:
		p.current++
	case p.loopMode == LoopAll:
		p.current = 0
	default:
		return -1
	}
	p.updateTableRows()
	return p.current
}

// PrevTrack moves the current mark back and returns it, or -1 at the start.
// LoopAll wraps to the end.
func (p *Playlist) PrevTrack() int {
	if len(p.tracks) == 0 {
		return -1
	}
	switch {
	case p.current > 0:
		p.current--
	case p.loopMode == LoopAll:
		p.current = len(p.tracks) - 1
	default:
		return -1
	}
	p.updateTableRows()
	return p.current
}

// MoveUp swaps the highlighted track with the one above it.
func (p *Playlist) MoveUp() {
	idx := p.table.Cursor()
	if idx <= 0 || idx >= len(p.tracks) {
		return
	}
	p.swap(idx, idx-1)
	p.table.SetCursor(idx - 1)
}

// MoveDown swaps the highlighted track with the one below it.
func (p *Playlist) MoveDown() {
	idx := p.table.Cursor()
	if idx < 0 || idx >= len(p.tracks)-1 {
		return
	}
	p.swap(idx, idx+1)
	p.table.SetCursor(idx + 1)
}

func (p *Playlist) swap(i, j int) {
	p.tracks[i], p.tracks[j] = p.tracks[j], p.tracks[i]
	switch p.current {
	case i:
		p.current = j
	case j:
		p.current = i
	}
	p.updateTableRows()
}

// Shuffle randomizes the queue order, keeping the current mark on the
// playing track.
func (p *Playlist) Shuffle() {
	if len(p.tracks) <= 1 {
		return
	}
	playing := ""
	if p.current >= 0 {
		playing = p.tracks[p.current].Path
	}
	rand.Shuffle(len(p.tracks), func(i, j int) {
		p.tracks[i], p.tracks[j] = p.tracks[j], p.tracks[i]
	})
	if playing != "" {
		for i, t := range p.tracks {
			if t.Path == playing {
				p.current = i
				break
			}
		}
	}
	p.updateTableRows()
}

// CycleLoopMode cycles None -> One -> All -> None.
func (p *Playlist) CycleLoopMode() {
	p.loopMode = (p.loopMode + 1) % 3
}

// LoopMode returns the current loop mode.
func (p Playlist) LoopMode() LoopMode {
	return p.loopMode
}

// LoopModeString returns a one-character tag for the loop mode.
func (p Playlist) LoopModeString() string {
	switch p.loopMode {
	case LoopOne:
		return "1"
	case LoopAll:
		return "A"
	default:
		return "-"
	}
}
