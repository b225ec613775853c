package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewi-tim/sasmux/internal/audio"
	"github.com/dewi-tim/sasmux/internal/config"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/physmem"
)

func newTestContext(t *testing.T) *audio.Context {
	t.Helper()
	cfg := config.Default()
	cfg.Backend = config.BackendNull
	cfg.HeapSize = 256 * 1024
	cfg.EngineConfig = "numGrains=256 numVoices=4"
	ctx, err := audio.New(cfg, audio.WithProvider(physmem.NewGoProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestContextMixer_Snapshot(t *testing.T) {
	ctx := newTestContext(t)
	mx := NewContextMixer(ctx)

	snap := mx.Snapshot()
	assert.Empty(t, snap.Instances)
	assert.Equal(t, ctx.Registry().Capacity(), snap.Capacity)
	assert.Equal(t, ctx.Heap().Name(), snap.HeapName)
	assert.Positive(t, snap.HeapCapacity)

	parent, err := ctx.CreateInstance(ctx.InstanceConfig())
	require.NoError(t, err)
	sub, err := ctx.CreateInstance(ctx.SubConfig(parent, 0x800, 0x400))
	require.NoError(t, err)

	snap = mx.Snapshot()
	require.Len(t, snap.Instances, 2)
	p, s := snap.Instances[0], snap.Instances[1]
	assert.Equal(t, parent, p.Index)
	assert.Equal(t, "main", p.Port)
	assert.Equal(t, 256, p.Grain)
	assert.Equal(t, sub, p.Sub)
	assert.Equal(t, 0x800, p.SubVolL)
	assert.Equal(t, 0x400, p.SubVolR)
	assert.Equal(t, -1, p.Parent)
	assert.False(t, p.Selected)

	assert.Equal(t, "sub", s.Port)
	assert.Equal(t, parent, s.Parent)
	assert.True(t, s.Selected)
	assert.Positive(t, snap.HeapInUse)
}

func TestContextMixer_SelectAndPause(t *testing.T) {
	ctx := newTestContext(t)
	mx := NewContextMixer(ctx)
	require.NoError(t, mx.SelectNext())

	parent, err := ctx.CreateInstance(ctx.InstanceConfig())
	require.NoError(t, err)
	sub, err := ctx.CreateInstance(ctx.SubConfig(parent, 0x1000, 0x1000))
	require.NoError(t, err)

	// The sub renders inside its parent and has no output of its own.
	assert.ErrorIs(t, mx.ToggleRender(), errs.ErrState)

	require.NoError(t, mx.SelectNext())
	assert.Equal(t, parent, ctx.Registry().Selected())
	require.NoError(t, mx.SelectNext())
	assert.Equal(t, sub, ctx.Registry().Selected())
	require.NoError(t, mx.SelectNext())

	require.NoError(t, mx.ToggleRender())
	assert.True(t, mx.Snapshot().Instances[0].Paused)
	require.NoError(t, mx.ToggleRender())
	assert.False(t, mx.Snapshot().Instances[0].Paused)
}
