// Package codec defines the contract between the streaming decoder and a
// codec engine, and ships a software engine for linear PCM.
//
// A codec consumes one elementary-stream unit per Decode call and produces
// one grain of interleaved s16 PCM. Its working state lives in a context
// memory block the caller allocates on the engine's behalf.
package codec

import "fmt"

// Alignment is the alignment of codec buffers and context memory.
const Alignment = 0x100

// Kind identifies a codec.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAT9
	KindMP3
	KindAAC
	KindPCM
)

func (k Kind) String() string {
	switch k {
	case KindAT9:
		return "AT9"
	case KindMP3:
		return "MP3"
	case KindAAC:
		return "AAC"
	case KindPCM:
		return "PCM"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MaxESSize is the largest elementary-stream unit of a codec kind, used to
// pad input buffers so the final unit can always be read whole.
func (k Kind) MaxESSize() int {
	switch k {
	case KindAT9:
		return 1024
	case KindMP3:
		return 1441
	case KindAAC:
		return 1792
	case KindPCM:
		return MaxPCMUnitSize
	default:
		return 0
	}
}

// Info describes the stream a codec context is created for.
type Info struct {
	Kind       Kind
	Channels   int
	SampleRate int
	// Config is the AT9 configuration payload.
	Config [4]byte
	// FramesPerUnit is the PCM unit length in sample frames.
	FramesPerUnit int
	// MPEGVersion is the MPEG audio version of MP3 streams.
	MPEGVersion int
}

// Result reports what one Decode call did.
type Result struct {
	Consumed int
	Produced int
}

// Memory is codec-visible context memory.
type Memory interface {
	Bytes() []byte
}

// Engine creates codec contexts.
type Engine interface {
	// ContextSize returns the context memory a decoder for info needs.
	ContextSize(info Info) (int, error)
	// Create initializes a decoder whose state lives in mem.
	Create(info Info, mem Memory) (Context, error)
}

// Context is one decoder instance.
type Context interface {
	// Decode consumes one unit from es and writes one grain into pcm.
	Decode(es, pcm []byte) (Result, error)
	// Reset clears decoder state so decoding can restart from any unit.
	Reset() error
	// UnitSize is the elementary-stream bytes consumed per Decode.
	UnitSize() int
	// MaxESSize is the largest unit Decode may read.
	MaxESSize() int
	// MaxPCMSize is the PCM bytes produced per Decode.
	MaxPCMSize() int
	Info() Info
	Close() error
}

// RoundUp rounds n up to Alignment.
func RoundUp(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}
