package container

import "fmt"

// ADTSHeaderSize is the size of the fixed part of an ADTS header.
const ADTSHeaderSize = 7

var adtsSampleRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 0, 0, 0, 0,
}

// ADTSHeader is a decoded AAC ADTS frame header.
type ADTSHeader struct {
	ID               int
	Layer            int
	ProtectionAbsent bool
	Profile          int
	RateIndex        int
	Private          bool
	ChannelConfig    int
	Original         bool
	Home             bool
	FrameLength      int

	SampleRate int
	Channels   int
}

// ParseADTS decodes the ADTS header at the start of buf.
func ParseADTS(buf []byte) (*ADTSHeader, error) {
	if len(buf) < ADTSHeaderSize {
		return nil, ErrTruncated
	}
	if sync := int(buf[0])<<4 | int(buf[1]&0xF0)>>4; sync != 0xFFF {
		return nil, ErrNoSync
	}

	h := &ADTSHeader{
		ID:               int(buf[1]&0x08) >> 3,
		Layer:            int(buf[1]&0x06) >> 1,
		ProtectionAbsent: buf[1]&0x01 != 0,
		Profile:          int(buf[2]&0xC0) >> 6,
		RateIndex:        int(buf[2]&0x3C) >> 2,
		Private:          buf[2]&0x02 != 0,
		ChannelConfig:    int(buf[2]&0x01)<<2 | int(buf[3]&0xC0)>>6,
		Original:         buf[3]&0x20 != 0,
		Home:             buf[3]&0x10 != 0,
		FrameLength:      int(buf[3]&0x03)<<11 | int(buf[4])<<3 | int(buf[5]&0xE0)>>5,
	}
	h.SampleRate = adtsSampleRates[h.RateIndex]
	h.Channels = h.ChannelConfig

	if h.Layer != 0 || h.SampleRate == 0 || h.Channels == 0 {
		return nil, fmt.Errorf("%w: adts layer %d rate index %d channels %d", ErrUnsupportedFormat, h.Layer, h.RateIndex, h.Channels)
	}
	return h, nil
}
