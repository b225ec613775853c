package ui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/container"
	"github.com/dewi-tim/sasmux/internal/library"
	"github.com/dewi-tim/sasmux/internal/player"
	"github.com/dewi-tim/sasmux/internal/storage"
	"github.com/dewi-tim/sasmux/internal/ui/components"
)

// fakePlayer records what the model asks of it.
type fakePlayer struct {
	loaded   string
	state    player.PlayState
	volume   float64
	pos      time.Duration
	failPath string
	loads    []string
	sub      chan player.PlaybackInfo
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{volume: 1, sub: make(chan player.PlaybackInfo, 1)}
}

func (f *fakePlayer) Load(path string) error {
	if path == f.failPath {
		f.loaded = ""
		return errors.New("bad header")
	}
	f.loaded = path
	f.state = player.StateStopped
	f.pos = 0
	f.loads = append(f.loads, path)
	return nil
}

func (f *fakePlayer) Unload() {
	f.loaded = ""
	f.state = player.StateStopped
}

func (f *fakePlayer) Play() error {
	if f.loaded == "" {
		return errors.New("no track")
	}
	f.state = player.StatePlaying
	return nil
}

func (f *fakePlayer) Pause() { f.state = player.StatePaused }

func (f *fakePlayer) Stop() {
	f.state = player.StateStopped
	f.pos = 0
}

func (f *fakePlayer) Toggle() {
	if f.state == player.StatePlaying {
		f.state = player.StatePaused
	} else {
		f.state = player.StatePlaying
	}
}

func (f *fakePlayer) Seek(pos time.Duration) { f.pos = max(pos, 0) }

func (f *fakePlayer) SeekRelative(d time.Duration) { f.Seek(f.pos + d) }

func (f *fakePlayer) SetVolume(v float64) { f.volume = min(max(v, 0), 1) }

func (f *fakePlayer) Track() *player.Track {
	if f.loaded == "" {
		return nil
	}
	return &player.Track{
		Path:      f.loaded,
		Title:     strings.TrimSuffix(filepath.Base(f.loaded), ".wav"),
		Album:     filepath.Base(filepath.Dir(f.loaded)),
		Format:    "RIFF/PCM",
		HasLoop:   true,
		LoopPoint: time.Second,
	}
}

func (f *fakePlayer) Info() player.PlaybackInfo {
	return player.PlaybackInfo{State: f.state, Position: f.pos, Duration: 10 * time.Second, Volume: f.volume}
}

func (f *fakePlayer) IsLoaded() bool { return f.loaded != "" }
func (f *fakePlayer) State() player.PlayState { return f.state }
func (f *fakePlayer) Subscribe() <-chan player.PlaybackInfo { return f.sub }
func (f *fakePlayer) Unsubscribe(<-chan player.PlaybackInfo) {}
func (f *fakePlayer) Close() error { return nil }

type fakeMixer struct {
	selects int
	toggles int
	err     error
}

func (f *fakeMixer) Snapshot() components.MixerSnapshot {
	return components.MixerSnapshot{
		Capacity:  8,
		HeapName:  "test",
		Instances: []components.InstanceRow{{Index: 0, Port: "main", Parent: -1, Sub: -1, Selected: true}},
	}
}

func (f *fakeMixer) SelectNext() error {
	f.selects++
	return nil
}

func (f *fakeMixer) ToggleRender() error {
	f.toggles++
	return f.err
}

func wave(frames int) []byte {
	return container.Wave{
		Format:     container.FormatPCM,
		Channels:   1,
		SampleRate: 48000,
		Data:       make([]byte, 2*frames),
	}.Encode()
}

type harness struct {
	t      *testing.T
	model  Model
	player *fakePlayer
	mixer  *fakeMixer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	files := fstest.MapFS{
		"ost/a.wav": {Data: wave(48000)},
		"ost/b.wav": {Data: wave(48000)},
		"ost/c.wav": {Data: wave(48000)},
	}
	lib := library.New("music", library.WithFS(files), library.WithStorage(storage.FS{FS: files}))
	n, err := lib.Scan()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	h := &harness{t: t, player: newFakePlayer(), mixer: &fakeMixer{}}
	h.model = New(h.player, lib, WithMixer(h.mixer))
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.send(components.LibBrowserScanCompleteMsg{TrackCount: n})
	return h
}

// send delivers msg. For key presses the returned command is run once and
// library selections are fed back in; other commands (the playback wait,
// ticks) would block or loop and are dropped.
func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	if _, isKey := msg.(tea.KeyMsg); !isKey || cmd == nil {
		return
	}
	switch out := cmd().(type) {
	case components.LibTrackSelectedMsg, components.LibTracksSelectedMsg:
		next, _ = h.model.Update(out)
		h.model = next.(Model)
	}
}

func (h *harness) press(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		switch k {
		case "enter":
			h.send(tea.KeyMsg{Type: tea.KeyEnter})
		case "tab":
			h.send(tea.KeyMsg{Type: tea.KeyTab})
		case "esc":
			h.send(tea.KeyMsg{Type: tea.KeyEsc})
		case "down":
			h.send(tea.KeyMsg{Type: tea.KeyDown})
		case " ":
			h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		default:
			h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		}
	}
}

// queueAlbum expands RIFF/PCM and queues the whole ost album.
func (h *harness) queueAlbum() {
	h.press("enter", "down", "a")
}

func TestBrowser_ShowsFormatTree(t *testing.T) {
	h := newHarness(t)
	view := h.model.View()
	assert.Contains(t, view, "3 tracks in music")
	assert.Contains(t, view, "[+] RIFF/PCM (1)")

	h.press("enter")
	assert.Contains(t, h.model.View(), "[+] ost (3)")
}

func TestSelectTrack_QueuesAndPlays(t *testing.T) {
	h := newHarness(t)
	h.press("enter", "down", "enter", "down", "enter")

	assert.Equal(t, []string{"ost/a.wav"}, h.player.loads)
	assert.Equal(t, player.StatePlaying, h.player.state)
	pl := h.model.Playlist()
	assert.Equal(t, 1, pl.Len())
	assert.Equal(t, 0, pl.CurrentIndex())
	require.NotNil(t, h.model.CurrentTrack())
	assert.Equal(t, "a", h.model.CurrentTrack().Title)
	assert.True(t, h.model.IsPlaying())

	// A second pick only queues while something plays.
	h.press("down", "enter")
	assert.Equal(t, 2, h.model.Playlist().Len())
	assert.Len(t, h.player.loads, 1)
}

func TestAddAll_QueuesAlbum(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()

	pl := h.model.Playlist()
	require.Equal(t, 3, pl.Len())
	assert.Equal(t, "ost/c.wav", pl.GetTrack(2).Path)
	assert.Equal(t, []string{"ost/a.wav"}, h.player.loads)
}

func TestEnded_AdvancesQueue(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()

	h.send(PlaybackMsg{State: player.StateEnded})
	assert.Equal(t, []string{"ost/a.wav", "ost/b.wav"}, h.player.loads)
	assert.Equal(t, 1, h.model.Playlist().CurrentIndex())

	h.send(PlaybackMsg{State: player.StateEnded})
	h.send(PlaybackMsg{State: player.StateEnded})
	assert.Equal(t, []string{"ost/a.wav", "ost/b.wav", "ost/c.wav"}, h.player.loads)

	// End of the queue without LoopAll stays put.
	h.player.state = player.StateEnded
	h.send(PlaybackMsg{State: player.StateEnded})
	assert.Len(t, h.player.loads, 3)
}

func TestEnded_LoopOneRepeats(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()
	h.press("tab", "m")
	assert.Equal(t, components.LoopOne, h.model.Playlist().LoopMode())

	h.send(PlaybackMsg{State: player.StateEnded})
	assert.Equal(t, []string{"ost/a.wav", "ost/a.wav"}, h.player.loads)
}

func TestPlayPause_Toggles(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()

	h.press(" ")
	assert.Equal(t, player.StatePaused, h.player.state)
	assert.True(t, h.model.IsPaused())
	h.press(" ")
	assert.Equal(t, player.StatePlaying, h.player.state)

	h.press("s")
	assert.True(t, h.model.IsStopped())
	h.press(" ")
	assert.Equal(t, player.StatePlaying, h.player.state)
}

func TestSeekAndVolume_GoToPlayer(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()

	h.press("f", "f", "b")
	assert.Equal(t, 5*time.Second, h.player.pos)
	h.press("-", "-")
	assert.InDelta(t, 0.8, h.player.volume, 1e-9)
	assert.InDelta(t, 0.8, h.model.Playback().Volume, 1e-9)
}

func TestNextPrev_WalkQueue(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()

	h.press("n", "n")
	assert.Equal(t, "ost/c.wav", h.player.loaded)
	h.press("n")
	assert.Equal(t, "ost/c.wav", h.player.loaded)
	h.press("N")
	assert.Equal(t, "ost/b.wav", h.player.loaded)
}

func TestRemovePlaying_Unloads(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()

	h.press("tab", "d")
	assert.False(t, h.player.IsLoaded())
	assert.Nil(t, h.model.CurrentTrack())
	assert.Equal(t, 2, h.model.Playlist().Len())
	assert.Equal(t, -1, h.model.Playlist().CurrentIndex())
}

func TestLoadFailure_ShowsError(t *testing.T) {
	h := newHarness(t)
	h.player.failPath = "ost/a.wav"
	h.queueAlbum()

	assert.Equal(t, "bad header", h.model.LastError())
	assert.Equal(t, -1, h.model.Playlist().CurrentIndex())
	assert.Contains(t, h.model.View(), "Error: bad header")
}

func TestMixerKeys_DriveRegistry(t *testing.T) {
	h := newHarness(t)
	h.press("i", "p")
	assert.Equal(t, 1, h.mixer.selects)
	assert.Equal(t, 1, h.mixer.toggles)

	h.mixer.err = errors.New("renders inside its parent")
	h.press("p")
	assert.Equal(t, "renders inside its parent", h.model.LastError())
}

func TestView_RendersPanels(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()
	h.send(TickMsg(time.Now()))

	view := h.model.View()
	assert.Contains(t, view, "Library")
	assert.Contains(t, view, "Queue 1/3")
	assert.Contains(t, view, "Mixer 1/8")
	assert.Contains(t, view, "heap test")
	assert.Contains(t, view, "Playing")
	assert.Contains(t, view, "loop 00:01")
}

func TestView_TooSmall(t *testing.T) {
	h := newHarness(t)
	h.send(tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Contains(t, h.model.View(), "Terminal too small")
}

func TestHelp_CapturesKeys(t *testing.T) {
	h := newHarness(t)
	h.queueAlbum()

	h.press("?")
	assert.Contains(t, h.model.View(), "Pause/resume its render")
	h.press("n")
	assert.Equal(t, "ost/a.wav", h.player.loaded)

	h.press("esc")
	assert.NotContains(t, h.model.View(), "Pause/resume its render")
}

func TestQuit(t *testing.T) {
	h := newHarness(t)
	_, cmd := h.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
