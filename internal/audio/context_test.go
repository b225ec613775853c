package audio

import (
	"encoding/binary"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/config"
	"github.com/dewi-tim/sasmux/internal/container"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/physmem"
	"github.com/dewi-tim/sasmux/internal/storage"
	"github.com/dewi-tim/sasmux/internal/stream"
	"github.com/dewi-tim/sasmux/internal/synth"
)

type peakSink struct {
	mu   sync.Mutex
	peak int16
	n    int
}

func (s *peakSink) sink(_ output.PortParams, buf []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	for _, v := range buf {
		s.peak = max(s.peak, v)
	}
}

func (s *peakSink) highest() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func testConfig() config.Config {
	c := config.Default()
	c.Backend = config.BackendNull
	c.HeapSize = 256 * 1024
	c.EngineConfig = "numGrains=256 numVoices=4"
	return c
}

func encodePCM(channels int, samples []int16, loop *container.SampleLoop) []byte {
	b := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return container.Wave{
		Format:     container.FormatPCM,
		Channels:   channels,
		SampleRate: 48000,
		Loop:       loop,
		Data:       b,
	}.Encode()
}

func newTestContext(t *testing.T, files fstest.MapFS, opts ...Option) (*Context, *physmem.GoProvider) {
	t.Helper()
	prov := physmem.NewGoProvider()
	opts = append([]Option{
		WithProvider(prov),
		WithStorage(storage.FS{FS: files}),
	}, opts...)
	c, err := New(testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, prov
}

func TestNew_RejectsBadConfig(t *testing.T) {
	c := testConfig()
	c.Capacity = 0
	_, err := New(c, WithProvider(physmem.NewGoProvider()))
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestContext_InstanceLifecycle(t *testing.T) {
	c, _ := newTestContext(t, fstest.MapFS{})

	parent, err := c.CreateInstance(c.InstanceConfig())
	require.NoError(t, err)
	assert.Equal(t, parent, c.Registry().Selected())

	sub, err := c.CreateInstance(c.SubConfig(parent, 0x800, 0x800))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Registry().Len())

	assert.ErrorIs(t, c.DestroyInstance(parent), errs.ErrState)
	require.NoError(t, c.DestroyInstance(sub))
	require.NoError(t, c.DestroyInstance(parent))
	assert.Zero(t, c.Registry().Len())
}

func TestContext_SampleDrivesVoice(t *testing.T) {
	files := fstest.MapFS{"tone.wav": {Data: encodePCM(1, constantSamples(512, 4000), nil)}}
	peak := &peakSink{}
	c, _ := newTestContext(t, files, WithOpener(output.NullOpener{Sink: peak.sink}))

	s, err := c.LoadSample("tone.wav")
	require.NoError(t, err)
	w, err := s.Waveform(0)
	require.NoError(t, err)

	_, err = c.CreateInstance(c.InstanceConfig())
	require.NoError(t, err)
	r := c.Registry()
	require.NoError(t, r.SetWaveform(0, w))
	require.NoError(t, r.SetVolume(0, synth.VolumeMax, synth.VolumeMax, 0, 0))
	require.NoError(t, r.KeyOn(0))

	require.Eventually(t, func() bool { return peak.highest() == 4000 }, 2*time.Second, 5*time.Millisecond)
}

func constantSamples(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestLoadSample_StereoIsPlanar(t *testing.T) {
	frames := []int16{1, -1, 2, -2, 3, -3, 4, -4}
	files := fstest.MapFS{"st.wav": {Data: encodePCM(2, frames, &container.SampleLoop{Start: 1, End: 3})}}
	c, _ := newTestContext(t, files)
	before := c.Heap().Stats()

	s, err := c.LoadSample("st.wav")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Channels())
	assert.Equal(t, 4, s.Frames())
	assert.Equal(t, 48000, s.SampleRate())
	assert.Equal(t, []int16{1, 2, 3, 4}, s.Data(0))
	assert.Equal(t, []int16{-1, -2, -3, -4}, s.Data(1))
	assert.Nil(t, s.Data(2))

	w, err := s.Waveform(1)
	require.NoError(t, err)
	assert.True(t, w.Loop)
	assert.Equal(t, 1, w.LoopStart)
	_, err = s.Waveform(2)
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	require.NoError(t, s.Free())
	assert.ErrorIs(t, s.Free(), errs.ErrInvalidHandle)
	assert.Equal(t, before.Allocations, c.Heap().Stats().Allocations)
}

func TestLoadSample_RejectsCompressed(t *testing.T) {
	at9 := container.Wave{Format: container.FormatAT9, Channels: 1, SampleRate: 48000, Data: make([]byte, 64)}.Encode()
	files := fstest.MapFS{
		"a.at9":    {Data: at9},
		"junk.wav": {Data: []byte("RIFF")},
	}
	c, _ := newTestContext(t, files)
	before := c.Heap().Stats()

	_, err := c.LoadSample("a.at9")
	assert.ErrorIs(t, err, errs.ErrHardwareRejected)
	assert.Equal(t, errs.CodeUnsupportedFormat, errs.CodeOf(err))
	_, err = c.LoadSample("junk.wav")
	assert.ErrorIs(t, err, errs.ErrHardwareRejected)
	_, err = c.LoadSample("missing.wav")
	assert.ErrorIs(t, err, errs.ErrIO)

	assert.Equal(t, before.Allocations, c.Heap().Stats().Allocations)
}

func TestLoadSample_RejectsVAG(t *testing.T) {
	vag := make([]byte, container.VAGHeaderSize+32)
	copy(vag, "VAGp")
	binary.BigEndian.PutUint32(vag[4:], 0x20)
	binary.BigEndian.PutUint32(vag[12:], 32)
	binary.BigEndian.PutUint32(vag[16:], 22050)
	files := fstest.MapFS{
		"jump.vag":  {Data: vag},
		"short.vag": {Data: []byte("VAGp\x00\x00")},
	}
	c, _ := newTestContext(t, files)
	before := c.Heap().Stats()

	_, err := c.LoadSample("jump.vag")
	assert.ErrorIs(t, err, errs.ErrHardwareRejected)
	assert.Equal(t, errs.CodeUnsupportedFormat, errs.CodeOf(err))
	assert.ErrorContains(t, err, "22050 Hz")

	_, err = c.LoadSample("short.vag")
	assert.Equal(t, errs.CodeBadHeader, errs.CodeOf(err))

	assert.Equal(t, before.Allocations, c.Heap().Stats().Allocations)
}

func TestContext_DecoderLifecycle(t *testing.T) {
	files := fstest.MapFS{"a.wav": {Data: encodePCM(2, constantSamples(4096, 7), nil)}}
	c, _ := newTestContext(t, files)

	d, err := c.OpenDecoderWith("a.wav", stream.Options{FramesPerUnit: 256})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Decoders())
	assert.Equal(t, 8, d.Units())

	require.NoError(t, c.CloseDecoder(d))
	assert.Zero(t, c.Decoders())
	assert.ErrorIs(t, c.CloseDecoder(d), errs.ErrInvalidHandle)
}

func TestClose_ReleasesEverything(t *testing.T) {
	files := fstest.MapFS{
		"a.wav": {Data: encodePCM(1, constantSamples(2048, 7), nil)},
	}
	prov := physmem.NewGoProvider()
	c, err := New(testConfig(), WithProvider(prov), WithStorage(storage.FS{FS: files}))
	require.NoError(t, err)

	d, err := c.OpenDecoder("a.wav")
	require.NoError(t, err)
	require.NoError(t, d.StartPlayback())
	_, err = c.LoadSample("a.wav")
	require.NoError(t, err)
	parent, err := c.CreateInstance(c.InstanceConfig())
	require.NoError(t, err)
	_, err = c.CreateInstance(c.SubConfig(parent, 0x1000, 0x1000))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	st := prov.Stats()
	assert.Zero(t, st.Regions)
	assert.Zero(t, st.Mappings)

	_, err = c.OpenDecoder("a.wav")
	assert.ErrorIs(t, err, errs.ErrInvalidHandle)
	_, err = c.CreateInstance(c.InstanceConfig())
	assert.ErrorIs(t, err, errs.ErrInvalidHandle)
	_, err = c.LoadSample("a.wav")
	assert.ErrorIs(t, err, errs.ErrInvalidHandle)
}
