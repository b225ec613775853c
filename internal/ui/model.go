package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dewi-tim/sasmux/internal/library"
	"github.com/dewi-tim/sasmux/internal/player"
	"github.com/dewi-tim/sasmux/internal/ui/components"
)

// Focus represents which panel is currently focused.
type Focus int

const (
	FocusBrowser Focus = iota
	FocusPlaylist
)

const (
	// How often the mixer panel is refreshed.
	statsInterval = 250 * time.Millisecond
	seekStep      = 5 * time.Second
	volumeStep    = 0.1
	// How long an error stays in the footer.
	errorTTL = 5 * time.Second
)

// Option customizes a Model.
type Option func(*Model)

// WithMixer shows the instance and heap panel fed by mx.
func WithMixer(mx Mixer) Option {
	return func(m *Model) { m.mixer = mx }
}

// Model is the main Bubbletea model for the sasmux monitor.
type Model struct {
	width  int
	height int

	focus Focus

	player player.Player
	lib    *library.Library
	mixer  Mixer
	sub    <-chan player.PlaybackInfo

	// UI components
	browser    *components.LibBrowser
	playlist   components.Playlist
	progress   components.ProgressBar
	mixerPanel components.MixerPanel
	helpPopup  components.HelpPopup
	help       help.Model

	keyMap KeyMap
	styles Styles

	quitting bool

	// Last state the player reported.
	playback     player.PlaybackInfo
	currentTrack *player.Track

	lastError string
	errorTime time.Time
}

// New creates the monitor over p and lib. The model subscribes to p; the
// caller still owns p and closes it after the program exits.
func New(p player.Player, lib *library.Library, opts ...Option) Model {
	m := Model{
		focus:      FocusBrowser,
		player:     p,
		lib:        lib,
		browser:    components.NewLibBrowser(lib),
		playlist:   components.NewPlaylist(),
		progress:   components.NewProgressBar(),
		mixerPanel: components.NewMixerPanel(),
		helpPopup:  components.NewHelpPopup(),
		help:       help.New(),
		keyMap:     DefaultKeyMap(),
		styles:     DefaultStyles(),
		playback:   p.Info(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.styles.ApplyHelp(&m.help)
	m.sub = p.Subscribe()
	m.browser.Focus()
	if m.mixer != nil {
		m.mixerPanel.SetSnapshot(m.mixer.Snapshot())
	}
	return m
}

// Init starts the library scan, the player subscription and the stats tick.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.browser.Init(), waitForPlayback(m.sub)}
	if m.mixer != nil {
		cmds = append(cmds, tickCmd())
	}
	return tea.Batch(cmds...)
}

// tickCmd schedules the next mixer panel refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitForPlayback delivers the next player update. A closed subscription
// ends the chain.
func waitForPlayback(ch <-chan player.PlaybackInfo) tea.Cmd {
	return func() tea.Msg {
		info, ok := <-ch
		if !ok {
			return nil
		}
		return PlaybackMsg(info)
	}
}

// Width returns the current window width.
func (m Model) Width() int {
	return m.width
}

// Height returns the current window height.
func (m Model) Height() int {
	return m.height
}

// Focus returns the currently focused panel.
func (m Model) Focus() Focus {
	return m.focus
}

// Playback returns the last playback state the model saw.
func (m Model) Playback() player.PlaybackInfo {
	return m.playback
}

// CurrentTrack returns the loaded track, or nil.
func (m Model) CurrentTrack() *player.Track {
	return m.currentTrack
}

// Playlist returns the play queue.
func (m Model) Playlist() components.Playlist {
	return m.playlist
}

// LastError returns the last error shown in the footer.
func (m Model) LastError() string {
	return m.lastError
}

// IsPlaying returns true if playback is active.
func (m Model) IsPlaying() bool {
	return m.playback.State == player.StatePlaying
}

// IsPaused returns true if playback is paused.
func (m Model) IsPaused() bool {
	return m.playback.State == player.StatePaused
}

// IsStopped returns true if nothing is playing.
func (m Model) IsStopped() bool {
	return m.playback.State == player.StateStopped || m.playback.State == player.StateEnded
}
