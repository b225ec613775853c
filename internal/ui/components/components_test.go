package components

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/library"
)

func queue(names ...string) Playlist {
	p := NewPlaylist()
	for _, n := range names {
		p.AddTrack(library.Track{Path: "ost/" + n + ".wav", Title: n, Format: "RIFF/PCM"})
	}
	return p
}

func titles(p Playlist) []string {
	var out []string
	for _, t := range p.Tracks() {
		out = append(out, t.Title)
	}
	return out
}

func TestPlaylist_NextPrevRespectLoopMode(t *testing.T) {
	p := queue("a", "b")

	assert.Equal(t, 0, p.NextTrack())
	assert.Equal(t, 1, p.NextTrack())
	assert.Equal(t, -1, p.NextTrack())
	assert.Equal(t, 1, p.CurrentIndex())

	p.CycleLoopMode()
	p.CycleLoopMode()
	require.Equal(t, LoopAll, p.LoopMode())
	assert.Equal(t, "A", p.LoopModeString())
	assert.Equal(t, 0, p.NextTrack())
	assert.Equal(t, 1, p.PrevTrack())

	p.CycleLoopMode()
	assert.Equal(t, LoopNone, p.LoopMode())
	assert.Equal(t, 0, p.PrevTrack())
	assert.Equal(t, -1, p.PrevTrack())
}

func TestPlaylist_MoveKeepsCurrentOnTrack(t *testing.T) {
	p := queue("a", "b", "c")
	p.SetCurrentTrack(0)

	p.MoveDown()
	assert.Equal(t, []string{"b", "a", "c"}, titles(p))
	assert.Equal(t, 1, p.CurrentIndex())
	assert.Equal(t, 1, p.SelectedIndex())

	p.MoveUp()
	assert.Equal(t, []string{"a", "b", "c"}, titles(p))
	assert.Equal(t, 0, p.CurrentIndex())
}

func TestPlaylist_RemoveAdjustsCurrent(t *testing.T) {
	p := queue("a", "b", "c")
	p.SetCurrentTrack(2)

	p.RemoveSelected()
	assert.Equal(t, []string{"b", "c"}, titles(p))
	assert.Equal(t, 1, p.CurrentIndex())
	assert.Equal(t, "c", p.CurrentTrack().Title)

	p.Clear()
	assert.True(t, p.IsEmpty())
	assert.Nil(t, p.CurrentTrack())
	assert.Nil(t, p.SelectedTrack())
}

func TestPlaylist_ShuffleFollowsPlayingTrack(t *testing.T) {
	p := queue("a", "b", "c", "d", "e", "f")
	p.SetCurrentTrack(3)

	p.Shuffle()
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f"}, titles(p))
	assert.Equal(t, "d", p.CurrentTrack().Title)
}

func TestPlaylist_Title(t *testing.T) {
	p := queue()
	assert.Equal(t, "Queue [-]", p.Title())
	p = queue("a", "b")
	assert.Equal(t, "Queue 2 [-]", p.Title())
	p.SetCurrentTrack(1)
	assert.Equal(t, "Queue 2/2 [-]", p.Title())
	p.SetCurrentTrack(5)
	assert.Equal(t, -1, p.CurrentIndex())
}

func TestProgressBar_View(t *testing.T) {
	b := NewProgressBar()
	b.SetWidth(40)
	b.SetElapsed(90 * time.Second)
	b.SetDuration(3 * time.Minute)
	assert.InDelta(t, 0.5, b.Percent(), 1e-9)

	view := b.View()
	assert.Contains(t, view, "01:30")
	assert.Contains(t, view, "03:00")
	assert.Equal(t, 1, strings.Count(view, "\n")+1)
	assert.NotContains(t, view, "loop")

	b.SetLoop(30 * time.Second)
	assert.Contains(t, b.View(), "^ loop 00:30")

	b.SetElapsed(time.Hour)
	assert.Equal(t, 1.0, b.Percent())
	b.SetDuration(0)
	assert.Zero(t, b.Percent())
}

func TestMixerPanel_View(t *testing.T) {
	p := NewMixerPanel()
	p.SetSize(80, 10)
	assert.Contains(t, p.View(), "no instances")

	p.SetSnapshot(MixerSnapshot{
		Capacity:     8,
		HeapName:     "h",
		HeapInUse:    2048,
		HeapCapacity: 1 << 20,
		Instances: []InstanceRow{
			{Index: 0, Port: "main", SampleRate: 48000, Grain: 256, Parent: -1, Sub: 1, SubVolL: 0x1000, SubVolR: 0x800, Grains: 12, Selected: true},
			{Index: 1, Port: "sub", SampleRate: 48000, Grain: 256, Parent: 0, Sub: -1},
			{Index: 2, Port: "bgm", SampleRate: 48000, Grain: 1024, Parent: -1, Sub: -1, Paused: true},
		},
	})
	assert.Equal(t, "Mixer 3/8", p.Title())

	view := p.View()
	assert.Contains(t, view, "2.0 KiB / 1.0 MiB")
	assert.Contains(t, view, "1@1000/800")
	assert.Contains(t, view, "in 0")
	assert.Contains(t, view, "paused")
}
