package pcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt16s_Aliases(t *testing.T) {
	b := make([]byte, 9)
	s := Int16s(b)
	assert.Len(t, s, 4)

	s[0] = -1
	assert.Equal(t, byte(0xFF), b[0])
	assert.Equal(t, byte(0xFF), b[1])

	assert.Nil(t, Int16s(b[:1]))
	assert.Len(t, Bytes(s), 8)
	assert.Len(t, Int32s(b), 2)
}

func TestClamp16(t *testing.T) {
	assert.Equal(t, int16(32767), Clamp16(40000))
	assert.Equal(t, int16(-32768), Clamp16(-40000))
	assert.Equal(t, int16(-5), Clamp16(-5))
}

func TestMixScaled(t *testing.T) {
	dst := []int16{1000, 1000, 30000, -30000}
	src := []int16{2000, 2000, 10000, -10000}

	MixScaled(dst, src, 0x800, 0x400)

	assert.Equal(t, []int16{2000, 1500, 32767, -32500}, dst)
}

func TestMixScaled_Saturates(t *testing.T) {
	dst := []int16{30000, -30000}
	MixScaled(dst, []int16{10000, -10000}, VolumeUnity, VolumeUnity)
	assert.Equal(t, []int16{32767, -32768}, dst)
}

func TestMixScaled_UnityIsExact(t *testing.T) {
	dst := []int16{0, 0}
	MixScaled(dst, []int16{-123, 456}, VolumeUnity, VolumeUnity)
	assert.Equal(t, []int16{-123, 456}, dst)
}

func TestDeinterleave(t *testing.T) {
	l := make([]int16, 3)
	r := make([]int16, 3)
	n := Deinterleave(l, r, []int16{1, 2, 3, 4})
	assert.Equal(t, 2, n)
	assert.Equal(t, []int16{1, 3, 0}, l)
	assert.Equal(t, []int16{2, 4, 0}, r)
}
