package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestL_DefaultsToNop(t *testing.T) {
	Set(nil)
	require.NotNil(t, L())
	assert.False(t, L().Core().Enabled(zap.ErrorLevel))
}

func TestSet_RoutesNamedLoggers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Named("heap").Debug("block linked", zap.Int("size", 4096))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "heap", entries[0].LoggerName)
	assert.Equal(t, int64(4096), entries[0].ContextMap()["size"])
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", false)
	assert.Error(t, err)

	l, err := New("warn", true)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}
