// Package pcm has helpers for interleaved signed 16-bit sample buffers.
package pcm

import "unsafe"

// VolumeUnity is 0 dB in the 4.12 fixed-point volume scale.
const VolumeUnity = 0x1000

// BytesPerSample is the size of one s16 sample.
const BytesPerSample = 2

// Int16s reinterprets b as native-endian s16 samples. A trailing odd byte is
// dropped. The result aliases b.
func Int16s(b []byte) []int16 {
	if len(b) < 2 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), len(b)/2)
}

// Int32s reinterprets b as native-endian 32-bit words.
func Int32s(b []byte) []int32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// Bytes reinterprets s as raw bytes. The result aliases s.
func Bytes(s []int16) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*2)
}

// Clamp16 saturates v to the s16 range.
func Clamp16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}

// MixScaled adds src into dst, both stereo interleaved, scaling the left and
// right channels of src by volL and volR (VolumeUnity = 1.0). Results
// saturate. The shorter of the two buffers bounds the mix.
func MixScaled(dst, src []int16, volL, volR int32) {
	n := min(len(dst), len(src)) &^ 1
	for i := 0; i < n; i += 2 {
		dst[i] = Clamp16(int32(dst[i]) + (int32(src[i])*volL)>>12)
		dst[i+1] = Clamp16(int32(dst[i+1]) + (int32(src[i+1])*volR)>>12)
	}
}

// Deinterleave splits stereo src into l and r.
func Deinterleave(l, r, src []int16) int {
	n := min(len(l), len(r), len(src)/2)
	for i := 0; i < n; i++ {
		l[i] = src[2*i]
		r[i] = src[2*i+1]
	}
	return n
}

// Silence zeroes b.
func Silence(b []int16) {
	clear(b)
}
