package container

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// VAGHeaderSize is the size of a VAG file header.
const VAGHeaderSize = 48

// ErrNotVAG reports a buffer without the VAGp magic.
var ErrNotVAG = errors.New("container: not a VAG stream")

var vagMagic = []byte("VAGp")

// VAGHeader is the big-endian header of an ADPCM voice sample.
type VAGHeader struct {
	Version    uint32
	DataSize   int
	SampleRate int
	Name       string
}

// IsVAG reports whether buf starts with the VAG magic.
func IsVAG(buf []byte) bool {
	return bytes.HasPrefix(buf, vagMagic)
}

// ParseVAG decodes the VAG header at the start of buf.
func ParseVAG(buf []byte) (*VAGHeader, error) {
	if !IsVAG(buf) {
		return nil, ErrNotVAG
	}
	if len(buf) < VAGHeaderSize {
		return nil, ErrTruncated
	}
	name := buf[32:48]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return &VAGHeader{
		Version:    binary.BigEndian.Uint32(buf[4:]),
		DataSize:   int(binary.BigEndian.Uint32(buf[12:])),
		SampleRate: int(binary.BigEndian.Uint32(buf[16:])),
		Name:       string(name),
	}, nil
}
