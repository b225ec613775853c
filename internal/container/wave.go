package container

import "encoding/binary"

// Wave describes a RIFF/WAVE stream to encode.
type Wave struct {
	Format     Format
	Channels   int
	SampleRate int
	// Config is the AT9 configuration payload.
	Config [4]byte
	Fact   *Fact
	Loop   *SampleLoop
	Data   []byte
}

// Encode serializes w. PCM streams get a plain 16-byte fmt chunk, AT9
// streams the 52-byte extensible form.
func (w Wave) Encode() []byte {
	var body []byte

	blockAlign := w.Channels * 2
	fmtChunk := make([]byte, fmtBaseSize, fmtAT9Size)
	binary.LittleEndian.PutUint16(fmtChunk[0:], WaveFormatPCM)
	binary.LittleEndian.PutUint16(fmtChunk[2:], uint16(w.Channels))
	binary.LittleEndian.PutUint32(fmtChunk[4:], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(fmtChunk[8:], uint32(w.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[12:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[14:], 16)

	if w.Format == FormatAT9 {
		fmtChunk = fmtChunk[:fmtAT9Size]
		binary.LittleEndian.PutUint16(fmtChunk[0:], WaveFormatExtensible)
		binary.LittleEndian.PutUint16(fmtChunk[16:], fmtAT9Size-18)
		binary.LittleEndian.PutUint16(fmtChunk[18:], 256)
		copy(fmtChunk[24:40], SubFormatAT9[:])
		binary.LittleEndian.PutUint32(fmtChunk[40:], 1)
		copy(fmtChunk[44:48], w.Config[:])
	}
	body = appendChunk(body, idFmt, fmtChunk)

	if w.Fact != nil {
		b := make([]byte, factSize)
		binary.LittleEndian.PutUint32(b[0:], w.Fact.TotalSamples)
		binary.LittleEndian.PutUint32(b[4:], w.Fact.DelayInputOverlap)
		binary.LittleEndian.PutUint32(b[8:], w.Fact.DelayEncoder)
		body = appendChunk(body, idFact, b)
	}
	if w.Loop != nil {
		b := make([]byte, smplSize)
		binary.LittleEndian.PutUint32(b[28:], 1)
		for i, v := range []uint32{w.Loop.Identifier, w.Loop.Type, w.Loop.Start, w.Loop.End, w.Loop.Fraction, w.Loop.PlayCount} {
			binary.LittleEndian.PutUint32(b[36+4*i:], v)
		}
		body = appendChunk(body, idSmpl, b)
	}
	body = appendChunk(body, idData, w.Data)

	out := make([]byte, 0, riffHeaderSize+len(body))
	out = binary.LittleEndian.AppendUint32(out, idRIFF)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+len(body)))
	out = binary.LittleEndian.AppendUint32(out, idWAVE)
	return append(out, body...)
}

func appendChunk(dst []byte, id uint32, data []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, id)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, data...)
	if len(data)%2 == 1 {
		dst = append(dst, 0)
	}
	return dst
}
