package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/errs"
)

func newTestEngine(t *testing.T, conf string) *Engine {
	t.Helper()
	cfg, err := ParseConfig(conf)
	require.NoError(t, err)
	need, err := NeededMemorySize(cfg)
	require.NoError(t, err)
	e, err := New(cfg, make([]byte, need))
	require.NoError(t, err)
	return e
}

func constant(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig, cfg.String())

	cfg, err = ParseConfig("numGrains=512 numVoices=4")
	require.NoError(t, err)
	assert.Equal(t, Config{Grains: 512, Voices: 4, Reverbs: 1, OutputMode: OutputStereo}, cfg)

	for _, bad := range []string{
		"numGrains=100",
		"numGrains=4096",
		"numVoices=0",
		"numVoices=33",
		"outputMode=1",
		"numReverbs=2",
		"bogus=1",
		"numGrains",
		"numGrains=abc",
	} {
		_, err := ParseConfig(bad)
		assert.ErrorIs(t, err, errs.ErrConfiguration, bad)
	}
}

func TestNew_NeedsMemory(t *testing.T) {
	cfg, err := ParseConfig(DefaultConfig)
	require.NoError(t, err)
	need, err := NeededMemorySize(cfg)
	require.NoError(t, err)
	assert.Equal(t, 256*2*4, need)

	_, err = New(cfg, make([]byte, need-1))
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestRender_SilentWhenIdle(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=2")
	out := constant(128, 7)
	require.NoError(t, e.Render(out))
	assert.Equal(t, make([]int16, 128), out)

	assert.ErrorIs(t, e.Render(make([]int16, 64)), errs.ErrConfiguration)
}

func TestRender_VolumeFixedPoint(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=2")
	require.NoError(t, e.SetWaveform(0, Waveform{Samples: constant(16, 1000), Loop: true}))
	require.NoError(t, e.SetVolume(0, VolumeMax, VolumeMax/2, 0, 0))
	require.NoError(t, e.KeyOn(0))

	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	for f := 0; f < 64; f++ {
		assert.Equal(t, int16(1000), out[2*f])
		assert.Equal(t, int16(500), out[2*f+1])
	}
}

func TestRender_SumsAndSaturates(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=2")
	for id := range 2 {
		require.NoError(t, e.SetWaveform(id, Waveform{Samples: constant(8, 30000), Loop: true}))
		require.NoError(t, e.KeyOn(id))
	}
	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	assert.Equal(t, int16(32767), out[0])
	assert.Equal(t, int16(32767), out[127])
}

func TestRender_OneShotEnds(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=1")
	require.NoError(t, e.SetWaveform(0, Waveform{Samples: constant(10, 100)}))
	require.NoError(t, e.KeyOn(0))

	end, err := e.EndState(0)
	require.NoError(t, err)
	assert.False(t, end)

	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	assert.Equal(t, int16(100), out[18])
	assert.Equal(t, int16(0), out[20])

	end, err = e.EndState(0)
	require.NoError(t, err)
	assert.True(t, end)
	assert.Equal(t, 0, e.ActiveVoices())
}

func TestRender_PitchStepsThroughWaveform(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=1")
	ramp := make([]int16, 256)
	for i := range ramp {
		ramp[i] = int16(i)
	}
	require.NoError(t, e.SetWaveform(0, Waveform{Samples: ramp}))
	require.NoError(t, e.SetPitch(0, 2*PitchBase))
	require.NoError(t, e.KeyOn(0))

	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	for f := 0; f < 64; f++ {
		assert.Equal(t, int16(2*f), out[2*f])
	}

	assert.ErrorIs(t, e.SetPitch(0, 0), errs.ErrConfiguration)
	assert.ErrorIs(t, e.SetPitch(0, PitchMax+1), errs.ErrConfiguration)
}

func TestRender_LoopWrapsToLoopStart(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=1")
	require.NoError(t, e.SetWaveform(0, Waveform{Samples: []int16{1, 2, 3, 4}, Loop: true, LoopStart: 2}))
	require.NoError(t, e.KeyOn(0))

	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	want := []int16{1, 2, 3, 4, 3, 4, 3, 4}
	for f, w := range want {
		assert.Equal(t, w, out[2*f], "frame %d", f)
	}
}

func TestEnvelope_AttackAndRelease(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=1")
	require.NoError(t, e.SetWaveform(0, Waveform{Samples: constant(4, 0x1000), Loop: true}))
	// 64 samples to reach full height.
	require.NoError(t, e.SetEnvelope(0, Envelope{
		Attack:  (EnvelopeMax << 16) / 64,
		Sustain: EnvelopeMax,
		Release: (EnvelopeMax << 16) / 32,
	}))
	require.NoError(t, e.KeyOn(0))

	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	assert.Less(t, out[0], out[60])
	lvl, err := e.EnvelopeLevel(0)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeMax, lvl)

	require.NoError(t, e.KeyOff(0))
	require.NoError(t, e.Render(out))
	assert.Equal(t, int16(0), out[126])
	end, err := e.EndState(0)
	require.NoError(t, err)
	assert.True(t, end)
}

func TestNoise_IsNotSilent(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=1")
	require.NoError(t, e.SetNoise(0, NoiseClockMax))
	require.NoError(t, e.KeyOn(0))

	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	var pos, neg int
	for _, s := range out {
		if s > 0 {
			pos++
		} else if s < 0 {
			neg++
		}
	}
	assert.Positive(t, pos)
	assert.Positive(t, neg)

	assert.ErrorIs(t, e.SetNoise(0, NoiseClockMax+1), errs.ErrConfiguration)
}

func TestVoiceOps_Validate(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=2")

	err := e.KeyOn(5)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.Equal(t, errs.CodeInvalidVoice, errs.CodeOf(err))

	assert.ErrorIs(t, e.KeyOn(1), errs.ErrState)
	assert.ErrorIs(t, e.SetVolume(0, VolumeMax+1, 0, 0, 0), errs.ErrConfiguration)
	assert.ErrorIs(t, e.SetWaveform(0, Waveform{}), errs.ErrConfiguration)
	assert.ErrorIs(t, e.SetWaveform(0, Waveform{Samples: []int16{1}, Loop: true, LoopStart: 1}), errs.ErrConfiguration)
	assert.ErrorIs(t, e.SetEnvelope(0, Envelope{Sustain: EnvelopeMax + 1}), errs.ErrConfiguration)
}

func TestPause_HoldsVoice(t *testing.T) {
	e := newTestEngine(t, "numGrains=64 numVoices=1")
	require.NoError(t, e.SetWaveform(0, Waveform{Samples: constant(4, 9), Loop: true}))
	require.NoError(t, e.KeyOn(0))
	require.NoError(t, e.SetPause(0, true))

	paused, err := e.PauseState(0)
	require.NoError(t, err)
	assert.True(t, paused)

	out := make([]int16, 128)
	require.NoError(t, e.Render(out))
	assert.Equal(t, int16(0), out[0])

	require.NoError(t, e.SetPause(0, false))
	require.NoError(t, e.Render(out))
	assert.Equal(t, int16(9), out[0])
}

func TestSetGrain(t *testing.T) {
	e := newTestEngine(t, "numGrains=256 numVoices=1")
	require.NoError(t, e.SetGrain(128))
	assert.Equal(t, 128, e.Grain())
	require.NoError(t, e.Render(make([]int16, 256)))
	assert.ErrorIs(t, e.SetGrain(512), errs.ErrConfiguration)
}

func TestSetEffect(t *testing.T) {
	e := newTestEngine(t, DefaultConfig)
	require.NoError(t, e.SetEffect(Effect{Type: EffectHall, Dry: true, Wet: true, VolL: VolumeMax, VolR: VolumeMax}))
	assert.Equal(t, EffectHall, e.Effect().Type)
	assert.ErrorIs(t, e.SetEffect(Effect{Type: 42}), errs.ErrConfiguration)

	dry := newTestEngine(t, "numReverbs=0")
	assert.ErrorIs(t, dry.SetEffect(Effect{Type: EffectRoom}), errs.ErrState)
}
