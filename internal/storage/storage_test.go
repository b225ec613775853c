package storage

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/errs"
)

func TestStorage_ReadWholeFile(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("RIFF....WAVEfmt ")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), payload, 0o644))

	backends := map[string]Storage{
		"os":     OS{Root: dir},
		"mapped": Mapped{OS{Root: dir}},
		"fs":     FS{FS: fstest.MapFS{"a.wav": {Data: payload}}},
	}
	for name, s := range backends {
		t.Run(name, func(t *testing.T) {
			size, err := s.Size("a.wav")
			require.NoError(t, err)
			assert.Equal(t, int64(len(payload)), size)

			// Oversized destination, as the decoder pads for the final unit.
			dst := make([]byte, size+64)
			n, err := s.ReadFile("a.wav", dst)
			require.NoError(t, err)
			assert.Equal(t, len(payload), n)
			assert.Equal(t, payload, dst[:n])
		})
	}
}

func TestStorage_MissingFileIsIOError(t *testing.T) {
	backends := map[string]Storage{
		"os":     OS{Root: t.TempDir()},
		"mapped": Mapped{OS{Root: t.TempDir()}},
		"fs":     FS{FS: fstest.MapFS{}},
	}
	for name, s := range backends {
		t.Run(name, func(t *testing.T) {
			_, err := s.Size("missing.at9")
			assert.ErrorIs(t, err, errs.ErrIO)

			_, err = s.ReadFile("missing.at9", make([]byte, 8))
			assert.ErrorIs(t, err, errs.ErrIO)
			assert.Equal(t, errs.CodeIOFailure, errs.CodeOf(err))
		})
	}
}

func TestOS_AbsolutePathIgnoresRoot(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x.pcm")
	require.NoError(t, os.WriteFile(p, []byte{1, 2}, 0o644))

	size, err := OS{Root: "/nonexistent"}.Size(p)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}
