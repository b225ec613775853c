package mspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = uintptr(0x10000)

func TestNew_TrimsToGranule(t *testing.T) {
	s := New(testBase+3, 100)
	assert.Equal(t, testBase+8, s.Base())
	assert.Equal(t, 88, s.Size())
	assert.True(t, s.IsEmpty())
}

func TestMalloc_FirstFit(t *testing.T) {
	s := New(testBase, 1024)

	a, err := s.Malloc(10)
	require.NoError(t, err)
	b, err := s.Malloc(24)
	require.NoError(t, err)

	assert.Equal(t, testBase, a)
	assert.Equal(t, testBase+16, b)
	assert.Equal(t, 40, s.InUse())

	size, ok := s.UsableSize(a)
	require.True(t, ok)
	assert.Equal(t, 16, size)
}

func TestMalloc_ZeroBytesGetsDistinctAddress(t *testing.T) {
	s := New(testBase, 64)
	a, err := s.Malloc(0)
	require.NoError(t, err)
	b, err := s.Malloc(0)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMemalign_Alignment(t *testing.T) {
	s := New(testBase, 8192)
	_, err := s.Malloc(8)
	require.NoError(t, err)

	for _, align := range []int{8, 16, 64, 256, 4096} {
		p, err := s.Memalign(align, 32)
		require.NoError(t, err, "align %d", align)
		assert.Zero(t, p%uintptr(align), "align %d", align)
	}

	_, err = s.Memalign(12, 8)
	assert.ErrorIs(t, err, ErrBadAlign)
	_, err = s.Memalign(4, 8)
	assert.ErrorIs(t, err, ErrBadAlign)
}

func TestMemalign_PadReturnsToFreeList(t *testing.T) {
	s := New(testBase, 4096)
	_, err := s.Malloc(8)
	require.NoError(t, err)

	p, err := s.Memalign(256, 8)
	require.NoError(t, err)
	assert.Equal(t, testBase+256, p)

	// The pad between the first allocation and p is reusable.
	q, err := s.Malloc(200)
	require.NoError(t, err)
	assert.Equal(t, testBase+8, q)
}

func TestFree_CoalescesNeighbours(t *testing.T) {
	s := New(testBase, 96)
	a, _ := s.Malloc(32)
	b, _ := s.Malloc(32)
	c, _ := s.Malloc(32)

	_, err := s.Malloc(8)
	require.ErrorIs(t, err, ErrNoSpace)

	require.NoError(t, s.Free(a))
	require.NoError(t, s.Free(c))
	require.NoError(t, s.Free(b))

	assert.True(t, s.IsEmpty())
	assert.Equal(t, 96, s.Largest())

	p, err := s.Malloc(96)
	require.NoError(t, err)
	assert.Equal(t, testBase, p)
}

func TestFree_NotOwned(t *testing.T) {
	s := New(testBase, 64)
	p, _ := s.Malloc(8)

	assert.ErrorIs(t, s.Free(p+8), ErrNotOwned)
	require.NoError(t, s.Free(p))
	assert.ErrorIs(t, s.Free(p), ErrNotOwned)
}

func TestRealloc_InPlace(t *testing.T) {
	s := New(testBase, 128)
	p, _ := s.Malloc(16)

	require.NoError(t, s.Realloc(p, 64))
	size, _ := s.UsableSize(p)
	assert.Equal(t, 64, size)

	require.NoError(t, s.Realloc(p, 8))
	size, _ = s.UsableSize(p)
	assert.Equal(t, 8, size)
	assert.Equal(t, 120, s.Available())
}

func TestRealloc_BlockedByNeighbour(t *testing.T) {
	s := New(testBase, 128)
	p, _ := s.Malloc(16)
	_, _ = s.Malloc(16)

	assert.ErrorIs(t, s.Realloc(p, 32), ErrNoSpace)
	size, _ := s.UsableSize(p)
	assert.Equal(t, 16, size)
}

func TestReallocAlign_Misaligned(t *testing.T) {
	s := New(testBase, 256)
	_, _ = s.Malloc(8)
	p, _ := s.Malloc(8)

	assert.ErrorIs(t, s.ReallocAlign(p, 16, 16), ErrNoSpace)
}

func TestContains(t *testing.T) {
	s := New(testBase, 64)
	assert.True(t, s.Contains(testBase))
	assert.True(t, s.Contains(testBase+63))
	assert.False(t, s.Contains(testBase+64))
	assert.False(t, s.Contains(testBase-1))
}
