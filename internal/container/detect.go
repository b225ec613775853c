package container

// Kind is the container family of a stream.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRIFF
	KindMPEG
	KindADTS
)

func (k Kind) String() string {
	switch k {
	case KindRIFF:
		return "riff"
	case KindMPEG:
		return "mpeg"
	case KindADTS:
		return "adts"
	default:
		return "unknown"
	}
}

// Detect identifies the container at the start of buf and returns the
// offset of its first header. ID3v2 tags ahead of MPEG frames are skipped.
func Detect(buf []byte) (Kind, int) {
	if len(buf) >= 4 && le32(buf) == idRIFF {
		return KindRIFF, 0
	}

	off := SkipID3(buf)
	if len(buf) < off+2 {
		return KindUnknown, 0
	}
	b := buf[off:]
	if b[0] != 0xFF {
		return KindUnknown, 0
	}
	switch {
	case b[1]&0xF6 == 0xF0:
		return KindADTS, off
	case b[1]&0xE0 == 0xE0 && b[1]&0x06 != 0:
		return KindMPEG, off
	}
	return KindUnknown, 0
}
