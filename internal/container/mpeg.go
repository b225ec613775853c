package container

import "fmt"

// MPEGHeaderSize is the size of an MPEG audio frame header.
const MPEGHeaderSize = 4

// MPEG audio versions as encoded in the frame header.
const (
	MPEGVersion25 = 0
	MPEGVersion2  = 2
	MPEGVersion1  = 3
)

var mpegBitRates = [4][16]int{
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	{},
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
}

var mpegSampleRates = [4][3]int{
	{11025, 12000, 8000},
	{},
	{22050, 24000, 16000},
	{44100, 48000, 32000},
}

// MPEGHeader is a decoded MPEG audio (layer III) frame header.
type MPEGHeader struct {
	Version       int
	Layer         int
	Protected     bool
	BitRateIndex  int
	RateIndex     int
	Padding       bool
	Private       bool
	ChannelMode   int
	ModeExtension int
	Copyright     bool
	Original      bool
	Emphasis      int

	// BitRate is in kbit/s.
	BitRate    int
	SampleRate int
	Channels   int
}

// SamplesPerFrame returns the PCM frames one MPEG frame decodes to.
func (h *MPEGHeader) SamplesPerFrame() int {
	if h.Version == MPEGVersion1 {
		return 1152
	}
	return 576
}

// FrameSize returns the byte size of a frame with this header.
func (h *MPEGHeader) FrameSize() int {
	if h.SampleRate == 0 {
		return 0
	}
	n := h.SamplesPerFrame() / 8 * h.BitRate * 1000 / h.SampleRate
	if h.Padding {
		n++
	}
	return n
}

// ParseMPEG decodes the frame header at the start of buf.
func ParseMPEG(buf []byte) (*MPEGHeader, error) {
	if len(buf) < MPEGHeaderSize {
		return nil, ErrTruncated
	}
	if sync := int(buf[0])<<4 | int(buf[1]&0xE0)>>4; sync != 0xFFE {
		return nil, ErrNoSync
	}

	h := &MPEGHeader{
		Version:       int(buf[1]&0x18) >> 3,
		Layer:         int(buf[1]&0x06) >> 1,
		Protected:     buf[1]&0x01 == 0,
		BitRateIndex:  int(buf[2]&0xF0) >> 4,
		RateIndex:     int(buf[2]&0x0C) >> 2,
		Padding:       buf[2]&0x02 != 0,
		Private:       buf[2]&0x01 != 0,
		ChannelMode:   int(buf[3]&0xC0) >> 6,
		ModeExtension: int(buf[3]&0x30) >> 4,
		Copyright:     buf[3]&0x08 != 0,
		Original:      buf[3]&0x04 != 0,
		Emphasis:      int(buf[3] & 0x03),
	}

	if h.Version == 1 || h.Layer == 0 || h.RateIndex == 3 || h.BitRateIndex == 15 {
		return nil, fmt.Errorf("%w: mpeg version %d layer %d rate %d", ErrUnsupportedFormat, h.Version, h.Layer, h.RateIndex)
	}

	h.BitRate = mpegBitRates[h.Version][h.BitRateIndex]
	h.SampleRate = mpegSampleRates[h.Version][h.RateIndex]
	h.Channels = 2
	if h.ChannelMode == 3 {
		h.Channels = 1
	}
	return h, nil
}

// SkipID3 returns the size of an ID3v2 tag at the start of buf, or 0.
func SkipID3(buf []byte) int {
	if len(buf) < 10 || buf[0] != 'I' || buf[1] != 'D' || buf[2] != '3' {
		return 0
	}
	size := int(buf[6]&0x7F)<<21 | int(buf[7]&0x7F)<<14 | int(buf[8]&0x7F)<<7 | int(buf[9]&0x7F)
	n := 10 + size
	if buf[5]&0x10 != 0 {
		n += 10
	}
	return n
}
