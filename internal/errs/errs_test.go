package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := New(KindResourceExhausted, "mixer.Create", CodeBusy, "all %d slots in use", 8)

	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, &Error{Code: CodeBusy})
	assert.NotErrorIs(t, err, &Error{Code: CodeHeapNoMemory})
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(KindIO, "storage.ReadFile", CodeIOFailure, cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrIO)
	assert.Equal(t, KindIO, KindOf(err))
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Contains(t, err.Error(), "0x80010005")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(KindIO, "op", 0, nil))
}

func TestCodeOf_Nested(t *testing.T) {
	inner := New(KindHardwareRejected, "codec", CodeCodecNoEntry, "no engine")
	outer := fmt.Errorf("open decoder: %w", Wrap(KindHardwareRejected, "stream.Open", 0, inner))

	assert.Equal(t, CodeCodecNoEntry, CodeOf(outer))
	assert.Equal(t, KindHardwareRejected, KindOf(outer))
	assert.Equal(t, Code(0), CodeOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}
