package stream

import (
	"errors"
	"time"

	"github.com/dewi-tim/sasmux/internal/codec"
	"github.com/dewi-tim/sasmux/internal/container"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/storage"
)

// aacFrames is the PCM frames one AAC raw data block decodes to.
const aacFrames = 1024

// Info is what a stream header says about the stream.
type Info struct {
	Container container.Kind
	Codec     codec.Info
	// HeaderOffset is where the first elementary-stream unit starts.
	HeaderOffset int
	// DataEnd is the offset one past the last payload byte.
	DataEnd int
	// TotalFrames is exact for RIFF streams and estimated from the first
	// frame header for MPEG and ADTS.
	TotalFrames int
	Loop        *container.SampleLoop
}

// Duration is the play time implied by TotalFrames.
func (i Info) Duration() time.Duration {
	if i.Codec.SampleRate <= 0 {
		return 0
	}
	return time.Duration(i.TotalFrames) * time.Second / time.Duration(i.Codec.SampleRate)
}

// Probe reads path and parses its header without allocating decoder
// resources.
func Probe(s storage.Storage, path string) (Info, error) {
	size, err := s.Size(path)
	if err != nil {
		return Info{}, err
	}
	buf := make([]byte, size)
	n, err := s.ReadFile(path, buf)
	if err != nil {
		return Info{}, err
	}
	return parse(buf[:n])
}

func parse(buf []byte) (Info, error) {
	const op = "stream.parse"

	kind, off := container.Detect(buf)
	switch kind {
	case container.KindRIFF:
		h, err := container.ParseRIFF(buf)
		if err != nil {
			return Info{}, headerError(op, err)
		}
		info := Info{
			Container:    kind,
			HeaderOffset: h.DataOffset,
			DataEnd:      min(len(buf), h.DataOffset+h.DataSize),
			TotalFrames:  h.TotalFrames(),
			Codec: codec.Info{
				Channels:   h.Channels(),
				SampleRate: h.SampleRate(),
			},
		}
		switch h.Format {
		case container.FormatAT9:
			info.Codec.Kind = codec.KindAT9
			info.Codec.Config = h.Fmt.ConfigData
		case container.FormatPCM:
			info.Codec.Kind = codec.KindPCM
		default:
			return Info{}, errs.New(errs.KindHardwareRejected, op, errs.CodeUnsupportedFormat, "wave format %s", h.Format)
		}
		if h.HasSmpl {
			loop := h.Smpl.Loop
			info.Loop = &loop
		}
		return info, nil

	case container.KindMPEG:
		h, err := container.ParseMPEG(buf[off:])
		if err != nil {
			return Info{}, headerError(op, err)
		}
		info := Info{
			Container:    kind,
			HeaderOffset: off,
			DataEnd:      len(buf),
			Codec: codec.Info{
				Kind:        codec.KindMP3,
				Channels:    h.Channels,
				SampleRate:  h.SampleRate,
				MPEGVersion: h.Version,
			},
		}
		if fs := h.FrameSize(); fs > 0 {
			info.TotalFrames = (len(buf) - off) / fs * h.SamplesPerFrame()
		}
		return info, nil

	case container.KindADTS:
		h, err := container.ParseADTS(buf[off:])
		if err != nil {
			return Info{}, headerError(op, err)
		}
		info := Info{
			Container:    kind,
			HeaderOffset: off,
			DataEnd:      len(buf),
			Codec: codec.Info{
				Kind:       codec.KindAAC,
				Channels:   h.Channels,
				SampleRate: h.SampleRate,
			},
		}
		if h.FrameLength > 0 {
			info.TotalFrames = (len(buf) - off) / h.FrameLength * aacFrames
		}
		return info, nil
	}
	return Info{}, errs.New(errs.KindHardwareRejected, op, errs.CodeBadHeader, "unrecognized stream")
}

func headerError(op string, err error) error {
	code := errs.CodeBadHeader
	if errors.Is(err, container.ErrUnsupportedFormat) {
		code = errs.CodeUnsupportedFormat
	}
	return errs.Wrap(errs.KindHardwareRejected, op, code, err)
}
