package synth

const (
	// VolumeMax is unity voice volume.
	VolumeMax = 0x1000

	PitchMin  = 1
	PitchMax  = 0x4000
	PitchBase = 0x1000

	NoiseClockMax = 0x3f

	// EnvelopeMax is the envelope level at full height.
	EnvelopeMax = 0x1000

	posShift  = 12
	envShift  = 16
	envLimit  = EnvelopeMax << envShift
	lfsrSeed  = 0x4000
	noiseTick = 0x40
)

// Waveform is 16-bit mono PCM for a voice. The samples are referenced, not
// copied, and must stay valid while the voice uses them.
type Waveform struct {
	Samples   []int16
	Loop      bool
	LoopStart int
}

// Envelope is a linear ADSR. Rates are level steps per sample in units of
// 1/65536 of a level step; a zero rate makes its phase instantaneous.
// Sustain is a level in 0..EnvelopeMax.
type Envelope struct {
	Attack  int32
	Decay   int32
	Sustain int32
	Release int32
}

// DefaultEnvelope keys straight to full level and releases instantly.
var DefaultEnvelope = Envelope{Sustain: EnvelopeMax}

type voiceKind uint8

const (
	kindNone voiceKind = iota
	kindPCM
	kindNoise
)

type phase uint8

const (
	phaseOff phase = iota
	phaseAttack
	phaseDecay
	phaseSustain
	phaseRelease
)

type voice struct {
	kind voiceKind
	wave Waveform

	noiseClock int
	noiseAcc   int
	lfsr       uint16

	pitch uint32
	pos   uint64

	dryL, dryR int32
	wetL, wetR int32

	env    Envelope
	level  int32
	phase  phase
	paused bool
}

func newVoice() voice {
	return voice{
		pitch: PitchBase,
		dryL:  VolumeMax,
		dryR:  VolumeMax,
		env:   DefaultEnvelope,
		lfsr:  lfsrSeed,
	}
}

func (v *voice) keyOn() {
	v.pos = 0
	v.noiseAcc = 0
	v.lfsr = lfsrSeed
	v.level = 0
	v.phase = phaseAttack
	if v.env.Attack == 0 {
		v.level = envLimit
		v.phase = phaseDecay
	}
}

func (v *voice) keyOff() {
	if v.phase != phaseOff {
		v.phase = phaseRelease
	}
}

// stepEnvelope advances one sample and returns the gain in 0..EnvelopeMax.
func (v *voice) stepEnvelope() int32 {
	sustain := v.env.Sustain << envShift
	switch v.phase {
	case phaseAttack:
		v.level += v.env.Attack
		if v.level >= envLimit || v.level < 0 {
			v.level = envLimit
			v.phase = phaseDecay
		}
	case phaseDecay:
		if v.env.Decay == 0 || v.level-v.env.Decay <= sustain {
			v.level = sustain
			v.phase = phaseSustain
		} else {
			v.level -= v.env.Decay
		}
	case phaseRelease:
		if v.env.Release == 0 || v.level-v.env.Release <= 0 {
			v.level = 0
			v.phase = phaseOff
		} else {
			v.level -= v.env.Release
		}
	}
	return v.level >> envShift
}

// next returns the next raw sample and false once a one-shot waveform ran
// out.
func (v *voice) next() (int16, bool) {
	switch v.kind {
	case kindNoise:
		v.noiseAcc += v.noiseClock + 1
		for v.noiseAcc >= noiseTick {
			v.noiseAcc -= noiseTick
			bit := (v.lfsr ^ v.lfsr>>1) & 1
			v.lfsr = v.lfsr>>1 | bit<<14
		}
		if v.lfsr&1 != 0 {
			return 0x3fff, true
		}
		return -0x3fff, true
	case kindPCM:
		n := uint64(len(v.wave.Samples))
		idx := v.pos >> posShift
		if idx >= n {
			if !v.wave.Loop {
				return 0, false
			}
			span := n - uint64(v.wave.LoopStart)
			idx = uint64(v.wave.LoopStart) + (idx-n)%span
			v.pos = idx<<posShift | v.pos&(1<<posShift-1)
		}
		s := v.wave.Samples[idx]
		v.pos += uint64(v.pitch)
		return s, true
	}
	return 0, false
}
