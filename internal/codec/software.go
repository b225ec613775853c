package codec

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/pcm"
)

const (
	// DefaultPCMFrames is the PCM unit length used when Info leaves it unset.
	DefaultPCMFrames = 1024
	// MaxPCMFrames bounds the PCM unit length to the largest output grain.
	MaxPCMFrames = 2048
	// MaxPCMUnitSize is the largest PCM unit in bytes.
	MaxPCMUnitSize = MaxPCMFrames * 2 * pcm.BytesPerSample

	pcmContextSize = 0x400
	pcmMagic       = 0x44_4D_43_50 // "PCMD"
)

// Software is a codec engine running on the host CPU. It decodes 16-bit
// little-endian linear PCM; compressed kinds need a hardware engine and are
// rejected.
type Software struct{}

// NewSoftware returns the software engine.
func NewSoftware() *Software { return &Software{} }

// ContextSize implements Engine.
func (s *Software) ContextSize(info Info) (int, error) {
	const op = "codec.ContextSize"
	if info.Kind != KindPCM {
		return 0, errs.New(errs.KindHardwareRejected, op, errs.CodeCodecNoEntry, "no engine for %s", info.Kind)
	}
	if _, err := pcmFrames(op, info); err != nil {
		return 0, err
	}
	return pcmContextSize, nil
}

// Create implements Engine.
func (s *Software) Create(info Info, mem Memory) (Context, error) {
	const op = "codec.Create"
	if info.Kind != KindPCM {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeCodecNoEntry, "no engine for %s", info.Kind)
	}
	frames, err := pcmFrames(op, info)
	if err != nil {
		return nil, err
	}
	state := mem.Bytes()
	if len(state) < pcmContextSize {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeCodecNoMemory, "context memory %d < %d", len(state), pcmContextSize)
	}
	info.FramesPerUnit = frames

	c := &pcmContext{info: info, state: state[:pcmContextSize], unit: frames * info.Channels * pcm.BytesPerSample}
	binary.LittleEndian.PutUint32(c.state[0:], pcmMagic)
	binary.LittleEndian.PutUint32(c.state[4:], uint32(info.Channels))
	binary.LittleEndian.PutUint32(c.state[8:], uint32(frames))
	c.setDecoded(0)
	return c, nil
}

func pcmFrames(op string, info Info) (int, error) {
	if info.Channels != 1 && info.Channels != 2 {
		return 0, errs.New(errs.KindConfiguration, op, errs.CodeCodecInvalidValue, "%d channels", info.Channels)
	}
	if info.SampleRate <= 0 {
		return 0, errs.New(errs.KindConfiguration, op, errs.CodeCodecInvalidValue, "sample rate %d", info.SampleRate)
	}
	frames := info.FramesPerUnit
	if frames == 0 {
		frames = DefaultPCMFrames
	}
	if frames < 64 || frames > MaxPCMFrames || frames%64 != 0 {
		return 0, errs.New(errs.KindConfiguration, op, errs.CodeCodecInvalidValue, "%d frames per unit", frames)
	}
	return frames, nil
}

type pcmContext struct {
	info   Info
	state  []byte
	unit   int
	closed atomic.Bool
}

func (c *pcmContext) Decode(es, out []byte) (Result, error) {
	const op = "codec.Decode"
	if c.closed.Load() {
		return Result{}, errs.New(errs.KindState, op, errs.CodeCodecInvalidValue, "context closed")
	}
	if len(out) < c.unit {
		return Result{}, errs.New(errs.KindConfiguration, op, errs.CodeCodecInvalidValue, "pcm buffer %d < %d", len(out), c.unit)
	}

	n := min(len(es), c.unit) &^ 1
	dst := pcm.Int16s(out[:c.unit])
	for i := 0; i < n/2; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(es[2*i:]))
	}
	clear(dst[n/2:])

	c.setDecoded(c.decoded() + 1)
	return Result{Consumed: c.unit, Produced: c.unit}, nil
}

func (c *pcmContext) Reset() error {
	c.setDecoded(0)
	return nil
}

func (c *pcmContext) UnitSize() int   { return c.unit }
func (c *pcmContext) MaxESSize() int  { return c.unit }
func (c *pcmContext) MaxPCMSize() int { return c.unit }
func (c *pcmContext) Info() Info      { return c.info }

func (c *pcmContext) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	clear(c.state)
	return nil
}

// Decoded returns the units decoded since the last reset.
func (c *pcmContext) Decoded() uint64 { return c.decoded() }

func (c *pcmContext) decoded() uint64 {
	return binary.LittleEndian.Uint64(c.state[16:])
}

func (c *pcmContext) setDecoded(n uint64) {
	binary.LittleEndian.PutUint64(c.state[16:], n)
}

var (
	_ Engine  = (*Software)(nil)
	_ Context = (*pcmContext)(nil)
)
