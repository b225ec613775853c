// Package synth is the software mixing engine: a fixed set of voices that
// play 16-bit waveforms or noise through a linear envelope, summed into a
// stereo grain with 12-bit fixed point volumes.
package synth

import (
	"sync"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/pcm"
)

// Effect types.
const (
	EffectOff = -1 + iota
	EffectRoom
	EffectStudioA
	EffectStudioB
	EffectStudioC
	EffectHall
	EffectSpace
	EffectEcho
	EffectDelay
	EffectPipe
)

// Effect holds the reverb settings. They are recorded and reported but the
// engine renders the dry path only.
type Effect struct {
	Type     int
	Dry      bool
	Wet      bool
	VolL     int
	VolR     int
	Delay    int
	Feedback int
}

// Engine is one software mixing engine.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	grain  int
	acc    []int32
	voices []voice
	effect Effect
}

// New initializes an engine in mem, which must hold NeededMemorySize bytes.
func New(cfg Config, mem []byte) (*Engine, error) {
	const op = "synth.New"

	need, err := NeededMemorySize(cfg)
	if err != nil {
		return nil, err
	}
	if len(mem) < need {
		return nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "memory %d bytes, need %d", len(mem), need)
	}

	e := &Engine{
		cfg:    cfg,
		grain:  cfg.Grains,
		acc:    pcm.Int32s(mem[:need]),
		voices: make([]voice, cfg.Voices),
		effect: Effect{Type: EffectOff, Dry: true},
	}
	for i := range e.voices {
		e.voices[i] = newVoice()
	}
	return e, nil
}

// Config returns the configuration the engine was created with.
func (e *Engine) Config() Config { return e.cfg }

// Grain returns the current grain in frames.
func (e *Engine) Grain() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grain
}

// SetGrain changes the grain. It cannot exceed the configured grain, which
// sized the engine memory.
func (e *Engine) SetGrain(g int) error {
	if g <= 0 || g > e.cfg.Grains || g%GrainUnit != 0 {
		return errs.New(errs.KindConfiguration, "synth.SetGrain", errs.CodeInvalidGrain, "grain %d", g)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grain = g
	return nil
}

// SetWaveform assigns PCM to voice id.
func (e *Engine) SetWaveform(id int, w Waveform) error {
	const op = "synth.SetWaveform"
	if len(w.Samples) == 0 {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "empty waveform")
	}
	if w.Loop && (w.LoopStart < 0 || w.LoopStart >= len(w.Samples)) {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidLoop, "loop start %d of %d", w.LoopStart, len(w.Samples))
	}
	return e.withVoice(op, id, func(v *voice) error {
		v.kind = kindPCM
		v.wave = w
		v.pos = 0
		v.phase = phaseOff
		return nil
	})
}

// SetNoise makes voice id a noise generator clocked at clk (0..NoiseClockMax).
func (e *Engine) SetNoise(id, clk int) error {
	const op = "synth.SetNoise"
	if clk < 0 || clk > NoiseClockMax {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidNoise, "noise clock %d", clk)
	}
	return e.withVoice(op, id, func(v *voice) error {
		v.kind = kindNoise
		v.noiseClock = clk
		v.wave = Waveform{}
		v.phase = phaseOff
		return nil
	})
}

// SetPitch sets the playback step, PitchBase being the original rate.
func (e *Engine) SetPitch(id, pitch int) error {
	const op = "synth.SetPitch"
	if pitch < PitchMin || pitch > PitchMax {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidPitch, "pitch %d", pitch)
	}
	return e.withVoice(op, id, func(v *voice) error {
		v.pitch = uint32(pitch)
		return nil
	})
}

// SetVolume sets the dry and wet volumes, each 0..VolumeMax.
func (e *Engine) SetVolume(id, l, r, wl, wr int) error {
	const op = "synth.SetVolume"
	for _, x := range [...]int{l, r, wl, wr} {
		if x < 0 || x > VolumeMax {
			return errs.New(errs.KindConfiguration, op, errs.CodeInvalidVolume, "volume %d", x)
		}
	}
	return e.withVoice(op, id, func(v *voice) error {
		v.dryL, v.dryR = int32(l), int32(r)
		v.wetL, v.wetR = int32(wl), int32(wr)
		return nil
	})
}

// SetEnvelope replaces the ADSR of voice id.
func (e *Engine) SetEnvelope(id int, env Envelope) error {
	const op = "synth.SetEnvelope"
	if env.Attack < 0 || env.Decay < 0 || env.Release < 0 || env.Sustain < 0 || env.Sustain > EnvelopeMax {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidEnvelope, "envelope %+v", env)
	}
	return e.withVoice(op, id, func(v *voice) error {
		v.env = env
		return nil
	})
}

// KeyOn starts voice id from the beginning of its waveform.
func (e *Engine) KeyOn(id int) error {
	const op = "synth.KeyOn"
	return e.withVoice(op, id, func(v *voice) error {
		if v.kind == kindNone {
			return errs.New(errs.KindState, op, errs.CodeNotInitialized, "voice %d has no waveform", id)
		}
		v.keyOn()
		return nil
	})
}

// KeyOff moves voice id into release.
func (e *Engine) KeyOff(id int) error {
	return e.withVoice("synth.KeyOff", id, func(v *voice) error {
		v.keyOff()
		return nil
	})
}

// SetPause holds or releases voice id without touching its envelope.
func (e *Engine) SetPause(id int, paused bool) error {
	return e.withVoice("synth.SetPause", id, func(v *voice) error {
		v.paused = paused
		return nil
	})
}

// PauseState reports whether voice id is held.
func (e *Engine) PauseState(id int) (bool, error) {
	var p bool
	err := e.withVoice("synth.PauseState", id, func(v *voice) error {
		p = v.paused
		return nil
	})
	return p, err
}

// EndState reports whether voice id is silent: never keyed, released to
// zero, or past the end of a one-shot waveform.
func (e *Engine) EndState(id int) (bool, error) {
	var end bool
	err := e.withVoice("synth.EndState", id, func(v *voice) error {
		end = v.phase == phaseOff
		return nil
	})
	return end, err
}

// EnvelopeLevel returns the current envelope height of voice id.
func (e *Engine) EnvelopeLevel(id int) (int, error) {
	var lvl int
	err := e.withVoice("synth.EnvelopeLevel", id, func(v *voice) error {
		lvl = int(v.level >> envShift)
		return nil
	})
	return lvl, err
}

// SetEffect records the reverb settings.
func (e *Engine) SetEffect(fx Effect) error {
	const op = "synth.SetEffect"
	if e.cfg.Reverbs == 0 && fx.Type != EffectOff {
		return errs.New(errs.KindState, op, errs.CodeNotInitialized, "engine configured without reverb")
	}
	if fx.Type < EffectOff || fx.Type > EffectPipe {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "effect type %d", fx.Type)
	}
	if fx.VolL < 0 || fx.VolL > VolumeMax || fx.VolR < 0 || fx.VolR > VolumeMax {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidVolume, "effect volume %d/%d", fx.VolL, fx.VolR)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.effect = fx
	return nil
}

// Effect returns the recorded reverb settings.
func (e *Engine) Effect() Effect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effect
}

// ActiveVoices counts voices that are not in the end state.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := range e.voices {
		if e.voices[i].phase != phaseOff {
			n++
		}
	}
	return n
}

// Render produces one stereo interleaved grain into out, which must hold
// exactly Grain()*2 samples. Each voice contributes
// sample*vol>>12*env>>12 per channel; the sum saturates to 16 bits.
func (e *Engine) Render(out []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(out) != e.grain*2 {
		return errs.New(errs.KindConfiguration, "synth.Render", errs.CodeInvalidGrain,
			"buffer holds %d samples, grain needs %d", len(out), e.grain*2)
	}

	acc := e.acc[:len(out)]
	clear(acc)
	dry := e.effect.Dry || e.effect.Type == EffectOff
	for i := range e.voices {
		v := &e.voices[i]
		if v.phase == phaseOff || v.paused || !dry {
			continue
		}
		for f := 0; f < e.grain; f++ {
			s, ok := v.next()
			if !ok {
				v.phase = phaseOff
				v.level = 0
				break
			}
			env := v.stepEnvelope()
			x := int32(s)
			acc[2*f] += (x * v.dryL >> 12) * env >> 12
			acc[2*f+1] += (x * v.dryR >> 12) * env >> 12
			if v.phase == phaseOff {
				break
			}
		}
	}
	for i, a := range acc {
		out[i] = pcm.Clamp16(a)
	}
	return nil
}

func (e *Engine) withVoice(op string, id int, fn func(v *voice) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id < 0 || id >= len(e.voices) {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidVoice, "voice %d", id)
	}
	return fn(&e.voices[id])
}
