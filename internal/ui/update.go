package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dewi-tim/sasmux/internal/player"
	"github.com/dewi-tim/sasmux/internal/ui/components"
)

// Message types for the TUI.
type (
	// TickMsg refreshes the mixer panel.
	TickMsg time.Time

	// PlaybackMsg carries a player update.
	PlaybackMsg player.PlaybackInfo
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.helpPopup.SetSize(msg.Width, msg.Height)
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.helpPopup.Visible() {
			m.helpPopup, cmd = m.helpPopup.Update(msg)
			return m, cmd
		}
		return m.handleKeyMsg(msg)

	case TickMsg:
		if m.mixer == nil {
			return m, nil
		}
		m.mixerPanel.SetSnapshot(m.mixer.Snapshot())
		return m, tickCmd()

	case PlaybackMsg:
		prev := m.playback.State
		m.playback = player.PlaybackInfo(msg)
		next := waitForPlayback(m.sub)
		if m.playback.State == player.StateEnded && prev != player.StateEnded {
			m = m.advance()
		}
		return m, next

	case components.LibBrowserScanCompleteMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
		}
		m.browser, cmd = m.browser.Update(msg)
		return m, cmd

	case components.LibTrackSelectedMsg:
		first := m.playlist.Len()
		m.playlist.AddTrack(msg.Track)
		if m.idle() {
			m = m.playIndex(first)
		}
		return m, nil

	case components.LibTracksSelectedMsg:
		first := m.playlist.Len()
		m.playlist.AddTracks(msg.Tracks)
		if m.idle() {
			m = m.playIndex(first)
		}
		return m, nil
	}

	return m, nil
}

// handleKeyMsg processes keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global key bindings (work regardless of focus)
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Help):
		m.helpPopup.Toggle()
		return m, nil

	case key.Matches(msg, m.keyMap.PlayPause):
		return m.togglePlayPause(), nil

	case key.Matches(msg, m.keyMap.NextTrack):
		if i := m.playlist.NextTrack(); i >= 0 {
			m = m.playIndex(i)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PrevTrack):
		if i := m.playlist.PrevTrack(); i >= 0 {
			m = m.playIndex(i)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Stop):
		m.player.Stop()
		m.playback = m.player.Info()
		return m, nil

	case key.Matches(msg, m.keyMap.SeekForward):
		m.player.SeekRelative(seekStep)
		m.playback = m.player.Info()
		return m, nil

	case key.Matches(msg, m.keyMap.SeekBackward):
		m.player.SeekRelative(-seekStep)
		m.playback = m.player.Info()
		return m, nil

	case key.Matches(msg, m.keyMap.VolumeUp):
		m.player.SetVolume(m.playback.Volume + volumeStep)
		m.playback = m.player.Info()
		return m, nil

	case key.Matches(msg, m.keyMap.VolumeDown):
		m.player.SetVolume(m.playback.Volume - volumeStep)
		m.playback = m.player.Info()
		return m, nil

	case key.Matches(msg, m.keyMap.NextInstance):
		if m.mixer != nil {
			m.setError(m.mixer.SelectNext())
			m.mixerPanel.SetSnapshot(m.mixer.Snapshot())
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PauseRender):
		if m.mixer != nil {
			m.setError(m.mixer.ToggleRender())
			m.mixerPanel.SetSnapshot(m.mixer.Snapshot())
		}
		return m, nil

	case key.Matches(msg, m.keyMap.TabFocus):
		m.setFocus((m.focus + 1) % 2)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case FocusBrowser:
		m.browser, cmd = m.browser.Update(msg)
	case FocusPlaylist:
		return m.handlePlaylistKey(msg)
	}
	return m, cmd
}

// handlePlaylistKey edits the queue; navigation goes to the table.
func (m Model) handlePlaylistKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := m.playlist.KeyMap()
	switch {
	case key.Matches(msg, km.Select):
		if i := m.playlist.SelectedIndex(); m.playlist.GetTrack(i) != nil {
			m = m.playIndex(i)
		}
	case key.Matches(msg, km.Remove):
		playing := m.playlist.CurrentIndex()
		removing := m.playlist.SelectedIndex()
		m.playlist.RemoveSelected()
		if playing >= 0 && playing == removing {
			m.player.Unload()
			m.currentTrack = nil
			m.playback = m.player.Info()
		}
	case key.Matches(msg, km.Clear):
		m.playlist.Clear()
		m.player.Unload()
		m.currentTrack = nil
		m.playback = m.player.Info()
	case key.Matches(msg, km.MoveUp):
		m.playlist.MoveUp()
	case key.Matches(msg, km.MoveDown):
		m.playlist.MoveDown()
	case key.Matches(msg, km.Shuffle):
		m.playlist.Shuffle()
	case key.Matches(msg, km.LoopMode):
		m.playlist.CycleLoopMode()
	default:
		var cmd tea.Cmd
		m.playlist, cmd = m.playlist.Update(msg)
		return m, cmd
	}
	return m, nil
}

// togglePlayPause starts the queue when idle, otherwise toggles the player.
func (m Model) togglePlayPause() Model {
	if !m.player.IsLoaded() || m.playback.State == player.StateEnded {
		i := m.playlist.CurrentIndex()
		if i < 0 {
			i = m.playlist.SelectedIndex()
		}
		if m.playlist.GetTrack(i) != nil {
			return m.playIndex(i)
		}
		return m
	}
	if m.player.State() == player.StateStopped {
		m.setError(m.player.Play())
	} else {
		m.player.Toggle()
	}
	m.playback = m.player.Info()
	return m
}

// playIndex loads and starts queue entry i.
func (m Model) playIndex(i int) Model {
	track := m.playlist.GetTrack(i)
	if track == nil {
		return m
	}
	if err := m.player.Load(track.Path); err != nil {
		m.setError(err)
		m.playlist.SetCurrentTrack(-1)
		m.currentTrack = nil
		m.playback = m.player.Info()
		return m
	}
	m.playlist.SetCurrentTrack(i)
	m.currentTrack = m.player.Track()
	m.setError(m.player.Play())
	m.playback = m.player.Info()
	m.progress.SetLoop(0)
	if m.currentTrack != nil && m.currentTrack.HasLoop {
		m.progress.SetLoop(m.currentTrack.LoopPoint)
	}
	return m
}

// advance picks what plays after the current track ends.
func (m Model) advance() Model {
	if m.playlist.LoopMode() == components.LoopOne {
		return m.playIndex(m.playlist.CurrentIndex())
	}
	if i := m.playlist.NextTrack(); i >= 0 {
		return m.playIndex(i)
	}
	return m
}

// idle reports whether nothing is playing or paused.
func (m Model) idle() bool {
	return !m.player.IsLoaded() || m.IsStopped()
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == FocusBrowser {
		m.browser.Focus()
		m.playlist.Blur()
	} else {
		m.browser.Blur()
		m.playlist.Focus()
	}
}

// setError shows err in the footer; nil is ignored.
func (m *Model) setError(err error) {
	if err == nil {
		return
	}
	m.lastError = err.Error()
	m.errorTime = time.Now()
}

// layout sizes the components for the current window.
func (m *Model) layout() {
	if m.width < minWidth || m.height < minHeight {
		return
	}
	libraryWidth, rightWidth, playlistHeight, mixerHeight := m.panelSizes()
	bodyHeight := m.height - footerHeight

	// Panel border 2, title 1
	m.browser.SetSize(libraryWidth-4, bodyHeight-3)
	m.playlist.SetSize(rightWidth, playlistHeight)
	m.progress.SetWidth(rightWidth - 6)
	m.mixerPanel.SetSize(rightWidth-4, mixerHeight-3)
}
