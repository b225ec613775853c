// Package output drives audio ports: a per-instance render loop that fills
// two grain buffers in turn and hands them to a blocking port, plus the port
// backends themselves.
package output

import (
	"fmt"

	"github.com/dewi-tim/sasmux/internal/errs"
)

const (
	// GrainMax is the largest grain in sample frames.
	GrainMax = 2048
	// GrainUnit is the granularity grains must be a multiple of.
	GrainUnit = 64
	// VolumeMax is 0 dB port volume.
	VolumeMax = 32768
)

// PortClass is the kind of port an instance or decoder outputs to.
type PortClass uint8

const (
	PortMain PortClass = iota
	PortBGM
	PortVoice
)

func (c PortClass) String() string {
	switch c {
	case PortMain:
		return "main"
	case PortBGM:
		return "bgm"
	case PortVoice:
		return "voice"
	default:
		return fmt.Sprintf("port(%d)", uint8(c))
	}
}

// ParsePortClass maps a name to a PortClass.
func ParsePortClass(s string) (PortClass, error) {
	switch s {
	case "main":
		return PortMain, nil
	case "bgm":
		return PortBGM, nil
	case "voice":
		return PortVoice, nil
	}
	return 0, errs.New(errs.KindConfiguration, "output.ParsePortClass", errs.CodeInvalidPort, "unknown port class %q", s)
}

// Format is the sample layout of a port.
type Format uint8

const (
	FormatS16Mono Format = iota
	FormatS16Stereo
)

// Channels returns the channel count of f.
func (f Format) Channels() int {
	if f == FormatS16Mono {
		return 1
	}
	return 2
}

func (f Format) String() string {
	if f == FormatS16Mono {
		return "s16-mono"
	}
	return "s16-stereo"
}

// FormatForChannels returns the s16 format for 1 or 2 channels.
func FormatForChannels(ch int) (Format, error) {
	switch ch {
	case 1:
		return FormatS16Mono, nil
	case 2:
		return FormatS16Stereo, nil
	}
	return 0, errs.New(errs.KindConfiguration, "output.FormatForChannels", errs.CodeInvalidParameter, "%d channels", ch)
}

// PortParams configures a port.
type PortParams struct {
	Class      PortClass
	Grain      int
	SampleRate int
	Format     Format
}

// BufferSamples returns the s16 sample count of one grain.
func (p PortParams) BufferSamples() int {
	return p.Grain * p.Format.Channels()
}

// Validate checks the grain, rate and format.
func (p PortParams) Validate() error {
	const op = "output.PortParams"
	if p.Grain <= 0 || p.Grain > GrainMax || p.Grain%GrainUnit != 0 {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidGrain, "grain %d", p.Grain)
	}
	if p.SampleRate <= 0 {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "sample rate %d", p.SampleRate)
	}
	if p.Format > FormatS16Stereo {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "format %d", p.Format)
	}
	if p.Class > PortVoice {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidPort, "port class %d", p.Class)
	}
	return nil
}

// Port is an opened output port.
type Port interface {
	// Output submits one grain. It blocks until the previously submitted
	// grain has drained, so the caller may then reuse that grain's buffer.
	// A nil buffer flushes: it waits for the outstanding grain, or for one
	// grain period when nothing is outstanding.
	Output(buf []int16) error
	// SetVolume sets the left and right volume, 0..VolumeMax.
	SetVolume(left, right int) error
	// SetConfig reconfigures grain, rate and format.
	SetConfig(p PortParams) error
	Params() PortParams
	// Release closes the port.
	Release() error
}

// Opener opens ports.
type Opener interface {
	Open(p PortParams) (Port, error)
}

func checkVolume(op string, l, r int) error {
	if l < 0 || l > VolumeMax || r < 0 || r > VolumeMax {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidVolume, "volume %d/%d", l, r)
	}
	return nil
}

func errReleased(op string) error {
	return errs.New(errs.KindState, op, errs.CodePortRejected, "port released")
}
