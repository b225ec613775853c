package player

import (
	"encoding/binary"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/audio"
	"github.com/dewi-tim/sasmux/internal/config"
	"github.com/dewi-tim/sasmux/internal/container"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/physmem"
	"github.com/dewi-tim/sasmux/internal/storage"
)

// 1024 frames per unit at 48 kHz.
const unitTime = 1024 * time.Second / 48000

func wave(frames int, loop *container.SampleLoop) []byte {
	data := make([]byte, 2*frames)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(i))
	}
	return container.Wave{
		Format:     container.FormatPCM,
		Channels:   1,
		SampleRate: 48000,
		Loop:       loop,
		Data:       data,
	}.Encode()
}

func newTestPlayer(t *testing.T) (*StreamPlayer, *audio.Context) {
	t.Helper()
	files := fstest.MapFS{
		"album/short.wav": {Data: wave(8*1024, &container.SampleLoop{Start: 24000})},
		"album/long.wav":  {Data: wave(200*1024, nil)},
		"album/odd.wav":   {Data: wave(8*1024+100, nil)},
	}
	cfg := config.Default()
	cfg.Backend = config.BackendNull
	ctx, err := audio.New(cfg,
		audio.WithProvider(physmem.NewGoProvider()),
		audio.WithStorage(storage.FS{FS: files}))
	require.NoError(t, err)

	p := New(ctx, WithTickInterval(5*time.Millisecond))
	t.Cleanup(func() {
		_ = p.Close()
		_ = ctx.Close()
	})
	return p, ctx
}

func TestLoad_DescribesTrack(t *testing.T) {
	p, _ := newTestPlayer(t)

	require.NoError(t, p.Load("album/short.wav"))
	require.True(t, p.IsLoaded())
	tr := p.Track()
	require.NotNil(t, tr)
	assert.Equal(t, "short", tr.Title)
	assert.Equal(t, "album", tr.Album)
	assert.Equal(t, "RIFF/PCM", tr.Format)
	assert.Equal(t, 1, tr.Channels)
	assert.Equal(t, 8*1024*time.Second/48000, tr.Duration)
	assert.True(t, tr.HasLoop)
	assert.Equal(t, 500*time.Millisecond, tr.LoopPoint)

	assert.Equal(t, StateStopped, p.State())
	info := p.Info()
	assert.Equal(t, 8, info.Units)
	assert.Equal(t, 1.0, info.Volume)
}

func TestPlay_RunsToEnd(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load("album/short.wav"))
	sub := p.Subscribe()

	require.NoError(t, p.Play())
	require.Eventually(t, func() bool { return p.State() == StateEnded }, 5*time.Second, 5*time.Millisecond)

	var last PlaybackInfo
	require.Eventually(t, func() bool {
		select {
		case last = <-sub:
		default:
		}
		return last.State == StateEnded
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, uint64(8), last.UnitsDecoded)
	assert.Equal(t, 1.0, last.Progress())
	assert.Zero(t, last.Remaining())
}

func TestPlay_NeedsTrack(t *testing.T) {
	p, _ := newTestPlayer(t)
	assert.ErrorIs(t, p.Play(), errs.ErrState)
}

func TestToggle_PausesAndResumes(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load("album/long.wav"))

	p.Toggle()
	assert.Equal(t, StatePlaying, p.State())
	p.Toggle()
	assert.Equal(t, StatePaused, p.State())

	// A unit already in the codec lands before the pause takes hold.
	time.Sleep(2 * unitTime)
	held := p.Info().Position
	time.Sleep(5 * unitTime)
	assert.Equal(t, held, p.Info().Position)

	p.Toggle()
	assert.Equal(t, StatePlaying, p.State())
	p.Stop()
	assert.Equal(t, StateStopped, p.State())
}

func TestSeek_WhilePlaying(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load("album/long.wav"))
	require.NoError(t, p.Play())

	p.Seek(2 * time.Second)
	pos := p.Info().Position
	assert.GreaterOrEqual(t, pos, 2*time.Second-unitTime)
	assert.Less(t, pos, 3*time.Second)

	p.SeekRelative(-time.Hour)
	assert.Less(t, p.Info().Position, time.Second)
}

func TestSeek_BeforePlayIsKept(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load("album/long.wav"))

	p.Seek(3 * time.Second)
	require.NoError(t, p.Play())
	assert.GreaterOrEqual(t, p.Info().Position, 3*time.Second-unitTime)
}

func TestSeek_PastEndLandsOnLastWholeUnit(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load("album/odd.wav"))
	require.Equal(t, 9, p.Info().Units)

	p.Seek(time.Hour)
	require.NoError(t, p.Play())
	assert.GreaterOrEqual(t, p.Info().Position, 8*unitTime)
}

func TestSetVolume_Clamps(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load("album/short.wav"))

	p.SetVolume(2)
	assert.Equal(t, 1.0, p.Info().Volume)
	p.SetVolume(-1)
	assert.Equal(t, 0.0, p.Info().Volume)
}

func TestLoad_FailureLeavesNothingLoaded(t *testing.T) {
	p, ctx := newTestPlayer(t)
	require.NoError(t, p.Load("album/short.wav"))

	assert.ErrorIs(t, p.Load("album/missing.wav"), errs.ErrIO)
	assert.False(t, p.IsLoaded())
	assert.Nil(t, p.Track())
	assert.Zero(t, ctx.Decoders())
}

func TestClose_ClosesSubscribers(t *testing.T) {
	p, ctx := newTestPlayer(t)
	require.NoError(t, p.Load("album/long.wav"))
	require.NoError(t, p.Play())
	sub := p.Subscribe()

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	for range sub {
	}
	assert.Zero(t, ctx.Decoders())
	assert.ErrorIs(t, p.Load("album/short.wav"), errs.ErrInvalidHandle)

	_, open := <-p.Subscribe()
	assert.False(t, open)
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	p, _ := newTestPlayer(t)
	sub := p.Subscribe()
	p.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)
}
