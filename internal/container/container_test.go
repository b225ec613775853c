package container

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRIFF_PCM(t *testing.T) {
	data := make([]byte, 400)
	buf := Wave{Format: FormatPCM, Channels: 2, SampleRate: 48000, Data: data}.Encode()

	h, err := ParseRIFF(buf)
	require.NoError(t, err)

	assert.Equal(t, FormatPCM, h.Format)
	assert.Equal(t, 2, h.Channels())
	assert.Equal(t, 48000, h.SampleRate())
	assert.Equal(t, 12+8+16+8, h.DataOffset)
	assert.Equal(t, 400, h.DataSize)
	assert.Equal(t, 100, h.TotalFrames())
	assert.Len(t, buf, h.DataOffset+400)
}

func TestParseRIFF_AT9WithFactAndLoop(t *testing.T) {
	buf := Wave{
		Format:     FormatAT9,
		Channels:   2,
		SampleRate: 48000,
		Config:     [4]byte{0xFE, 0x18, 0x00, 0x00},
		Fact:       &Fact{TotalSamples: 96000, DelayInputOverlap: 256},
		Loop:       &SampleLoop{Start: 1000, End: 50000},
		Data:       make([]byte, 1024),
	}.Encode()

	h, err := ParseRIFF(buf)
	require.NoError(t, err)

	assert.Equal(t, FormatAT9, h.Format)
	assert.Equal(t, uint16(WaveFormatExtensible), h.Fmt.FormatTag)
	assert.Equal(t, SubFormatAT9, h.Fmt.SubFormat)
	assert.Equal(t, [4]byte{0xFE, 0x18, 0x00, 0x00}, h.Fmt.ConfigData)
	require.True(t, h.HasFact)
	assert.Equal(t, uint32(96000), h.Fact.TotalSamples)
	assert.Equal(t, 96000, h.TotalFrames())
	require.True(t, h.HasSmpl)
	assert.Equal(t, uint32(1000), h.Smpl.Loop.Start)
	assert.Equal(t, uint32(50000), h.Smpl.Loop.End)
	assert.Equal(t, len(buf)-1024, h.DataOffset)
}

func TestParseRIFF_SkipsUnknownAndOddChunks(t *testing.T) {
	w := Wave{Format: FormatPCM, Channels: 1, SampleRate: 8000, Data: make([]byte, 64)}.Encode()

	// Splice an odd-sized LIST chunk between fmt and data.
	fmtEnd := 12 + 8 + 16
	var list []byte
	list = appendChunk(list, 0x5453494C, []byte{1, 2, 3})
	buf := append(append(append([]byte{}, w[:fmtEnd]...), list...), w[fmtEnd:]...)

	h, err := ParseRIFF(buf)
	require.NoError(t, err)
	assert.Equal(t, fmtEnd+len(list)+8, h.DataOffset)
	assert.Len(t, list, 12)
}

func TestParseRIFF_ShortFactIsSkipped(t *testing.T) {
	w := Wave{Format: FormatPCM, Channels: 1, SampleRate: 8000, Data: make([]byte, 8)}.Encode()
	fmtEnd := 12 + 8 + 16
	var fact []byte
	fact = appendChunk(fact, idFact, []byte{1, 2, 3, 4})
	buf := append(append(append([]byte{}, w[:fmtEnd]...), fact...), w[fmtEnd:]...)

	h, err := ParseRIFF(buf)
	require.NoError(t, err)
	assert.False(t, h.HasFact)
}

func TestParseRIFF_SkipsLeadingNonWaveRIFF(t *testing.T) {
	var other []byte
	other = binary.LittleEndian.AppendUint32(other, idRIFF)
	other = binary.LittleEndian.AppendUint32(other, 8)
	other = append(other, 'A', 'V', 'I', ' ', 0, 0, 0, 0)

	w := Wave{Format: FormatPCM, Channels: 2, SampleRate: 44100, Data: make([]byte, 16)}.Encode()
	h, err := ParseRIFF(append(other, w...))
	require.NoError(t, err)
	assert.Equal(t, 44100, h.SampleRate())
}

func TestParseRIFF_Errors(t *testing.T) {
	good := Wave{Format: FormatPCM, Channels: 2, SampleRate: 48000, Data: make([]byte, 16)}.Encode()

	_, err := ParseRIFF(good[:20])
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = ParseRIFF([]byte("RIFX\x00\x00\x00\x00WAVE"))
	assert.ErrorIs(t, err, ErrNotRIFF)

	var noFmt []byte
	noFmt = binary.LittleEndian.AppendUint32(noFmt, idRIFF)
	noFmt = binary.LittleEndian.AppendUint32(noFmt, 4+8+4)
	noFmt = binary.LittleEndian.AppendUint32(noFmt, idWAVE)
	noFmt = appendChunk(noFmt, idData, []byte{0, 0, 0, 0})
	_, err = ParseRIFF(noFmt)
	assert.ErrorIs(t, err, ErrNoFormat)

	bad := append([]byte{}, good...)
	binary.LittleEndian.PutUint16(bad[20:], 0x0055)
	_, err = ParseRIFF(bad)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	bad8 := append([]byte{}, good...)
	binary.LittleEndian.PutUint16(bad8[34:], 8)
	_, err = ParseRIFF(bad8)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseMPEG(t *testing.T) {
	// MPEG1 layer III, 128 kbit/s, 44100 Hz, joint stereo.
	h, err := ParseMPEG([]byte{0xFF, 0xFB, 0x90, 0x44})
	require.NoError(t, err)

	assert.Equal(t, MPEGVersion1, h.Version)
	assert.Equal(t, 1, h.Layer)
	assert.Equal(t, 128, h.BitRate)
	assert.Equal(t, 44100, h.SampleRate)
	assert.Equal(t, 2, h.Channels)
	assert.Equal(t, 1152, h.SamplesPerFrame())
	assert.Equal(t, 417, h.FrameSize())

	// MPEG2, 48 kbit/s, 24000 Hz, mono.
	h, err = ParseMPEG([]byte{0xFF, 0xF3, 0x64, 0xC0})
	require.NoError(t, err)
	assert.Equal(t, MPEGVersion2, h.Version)
	assert.Equal(t, 48, h.BitRate)
	assert.Equal(t, 24000, h.SampleRate)
	assert.Equal(t, 1, h.Channels)

	_, err = ParseMPEG([]byte{0x00, 0xFB, 0x90, 0x44})
	assert.ErrorIs(t, err, ErrNoSync)
	_, err = ParseMPEG([]byte{0xFF})
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = ParseMPEG([]byte{0xFF, 0xEB, 0x90, 0x44})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseADTS(t *testing.T) {
	// AAC LC, 44100 Hz, stereo, frame length 371.
	h, err := ParseADTS([]byte{0xFF, 0xF1, 0x50, 0x80, 0x2E, 0x7F, 0xFC})
	require.NoError(t, err)

	assert.Equal(t, 1, h.Profile)
	assert.Equal(t, 44100, h.SampleRate)
	assert.Equal(t, 2, h.Channels)
	assert.True(t, h.ProtectionAbsent)
	assert.Equal(t, 371, h.FrameLength)

	_, err = ParseADTS([]byte{0xFF, 0xE1, 0x50, 0x80, 0, 0, 0})
	assert.ErrorIs(t, err, ErrNoSync)
}

func TestDetect(t *testing.T) {
	wav := Wave{Format: FormatPCM, Channels: 1, SampleRate: 8000}.Encode()
	k, off := Detect(wav)
	assert.Equal(t, KindRIFF, k)
	assert.Zero(t, off)

	k, _ = Detect([]byte{0xFF, 0xFB, 0x90, 0x44})
	assert.Equal(t, KindMPEG, k)

	k, _ = Detect([]byte{0xFF, 0xF1, 0x50, 0x80})
	assert.Equal(t, KindADTS, k)

	id3 := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 2, 0xAA, 0xBB, 0xFF, 0xFB, 0x90, 0x44}
	k, off = Detect(id3)
	assert.Equal(t, KindMPEG, k)
	assert.Equal(t, 12, off)

	k, _ = Detect([]byte("OggS"))
	assert.Equal(t, KindUnknown, k)
}

func TestParseVAG(t *testing.T) {
	buf := make([]byte, VAGHeaderSize)
	copy(buf, "VAGp")
	binary.BigEndian.PutUint32(buf[4:], 0x20)
	binary.BigEndian.PutUint32(buf[12:], 4096)
	binary.BigEndian.PutUint32(buf[16:], 44100)
	copy(buf[32:], "jump")

	h, err := ParseVAG(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20), h.Version)
	assert.Equal(t, 4096, h.DataSize)
	assert.Equal(t, 44100, h.SampleRate)
	assert.Equal(t, "jump", h.Name)

	_, err = ParseVAG(buf[:20])
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = ParseVAG([]byte("RIFF0000WAVE"))
	assert.ErrorIs(t, err, ErrNotVAG)
}
