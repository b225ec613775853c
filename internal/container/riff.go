// Package container parses the stream headers sasmux understands: RIFF/WAVE
// (AT9 and linear PCM), MPEG audio frames, and AAC ADTS frames.
package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTruncated         = errors.New("container: header truncated")
	ErrNotRIFF           = errors.New("container: not a RIFF stream")
	ErrNoFormat          = errors.New("container: data chunk before fmt chunk")
	ErrUnsupportedFormat = errors.New("container: unsupported wave format")
	ErrNoSync            = errors.New("container: frame sync not found")
)

const (
	idRIFF = 0x46464952 // "RIFF"
	idWAVE = 0x45564157 // "WAVE"
	idFmt  = 0x20746D66 // "fmt "
	idFact = 0x74636166 // "fact"
	idData = 0x61746164 // "data"
	idSmpl = 0x6C706D73 // "smpl"
)

// Wave format tags.
const (
	WaveFormatPCM        = 0x0001
	WaveFormatExtensible = 0xFFFE
)

const (
	chunkHeaderSize = 8
	riffHeaderSize  = 12
	fmtBaseSize     = 16
	fmtExtSize      = 40
	fmtAT9Size      = 52
	factSize        = 12
	smplSize        = 60
)

// SubFormatAT9 is the KSDATAFORMAT GUID of ATRAC9 streams.
var SubFormatAT9 = [16]byte{0xD2, 0x42, 0xE1, 0x47, 0xBA, 0x36, 0x8D, 0x4D, 0x88, 0xFC, 0x61, 0x65, 0x4F, 0x8C, 0x83, 0x6C}

// SubFormatPCM is KSDATAFORMAT_SUBTYPE_PCM.
var SubFormatPCM = [16]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// Format is the payload encoding of a wave stream.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatPCM
	FormatAT9
)

func (f Format) String() string {
	switch f {
	case FormatPCM:
		return "PCM"
	case FormatAT9:
		return "AT9"
	default:
		return "unknown"
	}
}

// Fmt is the wave format chunk. Extensible fields are zero for plain PCM.
type Fmt struct {
	FormatTag       uint16
	Channels        uint16
	SamplesPerSec   uint32
	AvgBytesPerSec  uint32
	BlockAlign      uint16
	BitsPerSample   uint16
	CbSize          uint16
	SamplesPerBlock uint16
	ChannelMask     uint32
	SubFormat       [16]byte
	VersionInfo     uint32
	ConfigData      [4]byte
}

// Fact is the fact chunk of AT9 streams.
type Fact struct {
	TotalSamples      uint32
	DelayInputOverlap uint32
	DelayEncoder      uint32
}

// SampleLoop is one loop record of a smpl chunk.
type SampleLoop struct {
	Identifier uint32
	Type       uint32
	Start      uint32
	End        uint32
	Fraction   uint32
	PlayCount  uint32
}

// Smpl is the sampler chunk; only its first loop is kept.
type Smpl struct {
	Manufacturer      uint32
	Product           uint32
	SamplePeriod      uint32
	MIDIUnityNote     uint32
	MIDIPitchFraction uint32
	SMPTEFormat       uint32
	SMPTEOffset       uint32
	SampleLoops       uint32
	SamplerData       uint32
	Loop              SampleLoop
}

// Header is a parsed RIFF/WAVE header.
type Header struct {
	Format Format
	Fmt    Fmt

	HasFact bool
	Fact    Fact

	HasSmpl bool
	Smpl    Smpl

	// DataOffset is the offset of the first payload byte: the header size.
	DataOffset int
	// DataSize is the size declared by the data chunk.
	DataSize int
}

// Channels returns the channel count.
func (h *Header) Channels() int { return int(h.Fmt.Channels) }

// SampleRate returns the sampling rate in Hz.
func (h *Header) SampleRate() int { return int(h.Fmt.SamplesPerSec) }

// TotalFrames returns the number of sample frames in the stream, or 0 when
// the header does not say.
func (h *Header) TotalFrames() int {
	switch {
	case h.HasFact:
		return int(h.Fact.TotalSamples)
	case h.Format == FormatPCM && h.Fmt.BlockAlign > 0:
		return h.DataSize / int(h.Fmt.BlockAlign)
	}
	return 0
}

// ParseRIFF parses a RIFF/WAVE header at the start of buf. Non-WAVE RIFF
// chunks before the WAVE chunk are skipped; fact and smpl chunks too short
// for their structure are skipped rather than rejected.
func ParseRIFF(buf []byte) (*Header, error) {
	var (
		h   Header
		off int
	)

	for {
		if len(buf) < off+riffHeaderSize {
			return nil, ErrTruncated
		}
		if le32(buf[off:]) != idRIFF {
			return nil, ErrNotRIFF
		}
		size := padded(le32(buf[off+4:]))
		typ := le32(buf[off+8:])
		off += riffHeaderSize
		if typ == idWAVE {
			break
		}
		if size < 4 {
			return nil, ErrTruncated
		}
		if len(buf) < off+size-4 {
			return nil, ErrTruncated
		}
		off += size - 4
	}

	haveFmt := false
	for {
		if len(buf) < off+chunkHeaderSize {
			return nil, ErrTruncated
		}
		id := le32(buf[off:])
		raw := int(le32(buf[off+4:]))
		size := padded(uint32(raw))
		off += chunkHeaderSize

		switch id {
		case idFmt:
			if len(buf) < off+size {
				return nil, ErrTruncated
			}
			if err := parseFmt(&h, buf[off:off+raw]); err != nil {
				return nil, err
			}
			haveFmt = true
		case idFact:
			if raw >= factSize && len(buf) >= off+factSize {
				h.HasFact = true
				h.Fact = Fact{
					TotalSamples:      le32(buf[off:]),
					DelayInputOverlap: le32(buf[off+4:]),
					DelayEncoder:      le32(buf[off+8:]),
				}
			}
		case idSmpl:
			if raw >= smplSize && len(buf) >= off+smplSize {
				h.HasSmpl = true
				h.Smpl = parseSmpl(buf[off:])
			}
		case idData:
			if !haveFmt {
				return nil, ErrNoFormat
			}
			h.DataOffset = off
			h.DataSize = raw
			return &h, nil
		}

		if len(buf) < off+size {
			return nil, ErrTruncated
		}
		off += size
	}
}

func parseFmt(h *Header, b []byte) error {
	if len(b) < fmtBaseSize {
		return ErrTruncated
	}
	f := Fmt{
		FormatTag:      le16(b[0:]),
		Channels:       le16(b[2:]),
		SamplesPerSec:  le32(b[4:]),
		AvgBytesPerSec: le32(b[8:]),
		BlockAlign:     le16(b[12:]),
		BitsPerSample:  le16(b[14:]),
	}

	switch f.FormatTag {
	case WaveFormatPCM:
		if f.BitsPerSample != 16 {
			return fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, f.BitsPerSample)
		}
		h.Format = FormatPCM
	case WaveFormatExtensible:
		if len(b) < fmtExtSize {
			return ErrTruncated
		}
		f.CbSize = le16(b[16:])
		f.SamplesPerBlock = le16(b[18:])
		f.ChannelMask = le32(b[20:])
		copy(f.SubFormat[:], b[24:40])

		switch {
		case bytes.Equal(f.SubFormat[:], SubFormatAT9[:]):
			if len(b) < fmtAT9Size {
				return ErrTruncated
			}
			f.VersionInfo = le32(b[40:])
			copy(f.ConfigData[:], b[44:48])
			h.Format = FormatAT9
		case bytes.Equal(f.SubFormat[:], SubFormatPCM[:]):
			if f.BitsPerSample != 16 {
				return fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, f.BitsPerSample)
			}
			h.Format = FormatPCM
		default:
			return fmt.Errorf("%w: sub-format % X", ErrUnsupportedFormat, f.SubFormat[:4])
		}
	default:
		return fmt.Errorf("%w: tag 0x%04X", ErrUnsupportedFormat, f.FormatTag)
	}

	h.Fmt = f
	return nil
}

func parseSmpl(b []byte) Smpl {
	return Smpl{
		Manufacturer:      le32(b[0:]),
		Product:           le32(b[4:]),
		SamplePeriod:      le32(b[8:]),
		MIDIUnityNote:     le32(b[12:]),
		MIDIPitchFraction: le32(b[16:]),
		SMPTEFormat:       le32(b[20:]),
		SMPTEOffset:       le32(b[24:]),
		SampleLoops:       le32(b[28:]),
		SamplerData:       le32(b[32:]),
		Loop: SampleLoop{
			Identifier: le32(b[36:]),
			Type:       le32(b[40:]),
			Start:      le32(b[44:]),
			End:        le32(b[48:]),
			Fraction:   le32(b[52:]),
			PlayCount:  le32(b[56:]),
		},
	}
}

// padded returns a chunk size rounded up to even.
func padded(n uint32) int {
	return int(n) + int(n&1)
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
