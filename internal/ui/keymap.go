package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings that work whichever panel has focus. Panel
// navigation lives in the component key maps.
type KeyMap struct {
	// Transport
	PlayPause    key.Binding
	NextTrack    key.Binding
	PrevTrack    key.Binding
	Stop         key.Binding
	SeekForward  key.Binding
	SeekBackward key.Binding
	VolumeUp     key.Binding
	VolumeDown   key.Binding

	// Mixer registry cursor
	NextInstance key.Binding
	PauseRender  key.Binding

	TabFocus key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PlayPause:    bind("space", "play/pause", " "),
		NextTrack:    bind("n", "next", "n"),
		PrevTrack:    bind("N", "prev", "N"),
		Stop:         bind("s", "stop", "s"),
		SeekForward:  bind("f", "+5s", "f"),
		SeekBackward: bind("b", "-5s", "b"),
		VolumeUp:     bind("+", "vol+", "+", "="),
		VolumeDown:   bind("-", "vol-", "-"),

		NextInstance: bind("i", "next instance", "i"),
		PauseRender:  bind("p", "pause render", "p"),

		TabFocus: bind("tab", "switch panel", "tab"),
		Help:     bind("?", "help", "?"),
		Quit:     bind("q", "quit", "q", "ctrl+c"),
	}
}

// footerKeys is the help.KeyMap shown in the footer: the focused panel's
// main actions followed by the global ones.
type footerKeys struct {
	panel  []key.Binding
	global KeyMap
}

func (f footerKeys) ShortHelp() []key.Binding {
	g := f.global
	return append(f.panel, g.TabFocus, g.PlayPause, g.Help, g.Quit)
}

func (f footerKeys) FullHelp() [][]key.Binding {
	g := f.global
	return [][]key.Binding{
		f.panel,
		{g.PlayPause, g.NextTrack, g.PrevTrack, g.Stop},
		{g.SeekForward, g.SeekBackward, g.VolumeUp, g.VolumeDown},
		{g.NextInstance, g.PauseRender},
		{g.TabFocus, g.Help, g.Quit},
	}
}

// footerHelp picks the footer bindings for the current focus.
func (m Model) footerHelp() footerKeys {
	f := footerKeys{global: m.keyMap}
	switch m.focus {
	case FocusBrowser:
		km := m.browser.KeyMap()
		f.panel = []key.Binding{km.Enter, km.AddAll}
	case FocusPlaylist:
		km := m.playlist.KeyMap()
		loop := km.LoopMode
		loop.SetHelp("m", "loop "+m.playlist.LoopModeString())
		f.panel = []key.Binding{km.Select, km.Remove, loop}
	}
	return f
}

