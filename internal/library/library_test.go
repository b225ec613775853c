package library

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/container"
	"github.com/dewi-tim/sasmux/internal/storage"
)

func pcmWave(frames int) []byte {
	return container.Wave{
		Format:     container.FormatPCM,
		Channels:   2,
		SampleRate: 48000,
		Data:       make([]byte, frames*4),
	}.Encode()
}

func repeatFrame(header []byte, frameSize, frames int) []byte {
	b := make([]byte, frameSize*frames)
	for i := 0; i < frames; i++ {
		copy(b[i*frameSize:], header)
	}
	return b
}

func testLibrary(t *testing.T) *Library {
	t.Helper()
	files := fstest.MapFS{
		"ost/b-side.wav":     {Data: pcmWave(48000)},
		"ost/a-side.WAV":     {Data: pcmWave(24000)},
		"ost/notes.txt":      {Data: []byte("liner notes")},
		"ost/broken.wav":     {Data: []byte("RIFF....WAVE")},
		"demo/jingle.mp3":    {Data: repeatFrame([]byte{0xFF, 0xFB, 0x90, 0x44}, 417, 10)},
		"demo/stinger.aac":   {Data: repeatFrame([]byte{0xFF, 0xF1, 0x50, 0x80, 0x2E, 0x7F, 0xFC}, 371, 4)},
		".cache/ignored.wav": {Data: pcmWave(10)},
	}
	return New("music", WithFS(files), WithStorage(storage.FS{FS: files}), WithParallelism(2))
}

func TestScan_IndexesByFormatAndAlbum(t *testing.T) {
	l := testLibrary(t)

	n, err := l.Scan()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, l.TrackCount())
	assert.Equal(t, 1, l.Skipped())
	assert.Equal(t, "music", l.Root())

	assert.Equal(t, []string{"ADTS/AAC", "MPEG/MP3", "RIFF/PCM"}, l.Formats())
	assert.Equal(t, []string{"ost"}, l.Albums("RIFF/PCM"))
	assert.Nil(t, l.Albums("RIFF/AT9"))

	ost := l.Tracks("RIFF/PCM", "ost")
	require.Len(t, ost, 2)
	assert.Equal(t, "a-side", ost[0].Title)
	assert.Equal(t, time.Second/2, ost[0].Duration)
	assert.Equal(t, "b-side", ost[1].Title)
	assert.Equal(t, time.Second, ost[1].Duration)
	assert.Equal(t, 2, ost[1].Channels)
	assert.Equal(t, 48000, ost[1].SampleRate)

	mp3 := l.Tracks("MPEG/MP3", "demo")
	require.Len(t, mp3, 1)
	assert.Equal(t, 10*1152*time.Second/44100, mp3[0].Duration)

	aac := l.Tracks("ADTS/AAC", "demo")
	require.Len(t, aac, 1)
	assert.Equal(t, 4*1024*time.Second/44100, aac[0].Duration)

	assert.Nil(t, l.Tracks("RIFF/PCM", "nope"))
}

func TestScan_Rescans(t *testing.T) {
	l := testLibrary(t)
	_, err := l.Scan()
	require.NoError(t, err)
	n, err := l.Scan()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, l.AllTracks(), 4)
}

func TestIsAudioFile(t *testing.T) {
	for _, name := range []string{"a.at9", "b.WAV", "c.mp3", "d.aac"} {
		assert.True(t, isAudioFile(name), name)
	}
	for _, name := range []string{"a.flac", "b.txt", "wav"} {
		assert.False(t, isAudioFile(name), name)
	}
}
