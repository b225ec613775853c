package ui

import (
	"github.com/dewi-tim/sasmux/internal/audio"
	"github.com/dewi-tim/sasmux/internal/ui/components"
)

// Mixer is the instance side of the monitor: it reports the registry and
// heap, and drives the registry cursor.
type Mixer interface {
	Snapshot() components.MixerSnapshot
	// SelectNext moves the registry cursor to the next occupied slot.
	SelectNext() error
	// ToggleRender pauses or resumes the selected instance's output.
	ToggleRender() error
}

// ContextMixer exposes an audio context to the monitor.
type ContextMixer struct {
	ctx *audio.Context
}

// NewContextMixer wraps ctx.
func NewContextMixer(ctx *audio.Context) *ContextMixer {
	return &ContextMixer{ctx: ctx}
}

// Snapshot reads the registry, heap and provider counters. Instances
// destroyed while the snapshot is taken are left out.
func (m *ContextMixer) Snapshot() components.MixerSnapshot {
	reg := m.ctx.Registry()
	hs := m.ctx.Heap().Stats()
	ps := m.ctx.Provider().Stats()

	snap := components.MixerSnapshot{
		Capacity:        reg.Capacity(),
		HeapName:        m.ctx.Heap().Name(),
		HeapBlocks:      hs.Blocks,
		HeapAllocations: hs.Allocations,
		HeapInUse:       hs.InUse,
		HeapCapacity:    hs.Capacity,
		Regions:         ps.Regions,
		RegionBytes:     ps.Bytes,
		Mappings:        ps.Mappings,
		Decoders:        m.ctx.Decoders(),
	}

	selected := reg.Selected()
	for _, idx := range reg.Indices() {
		inst, err := reg.Instance(idx)
		if err != nil {
			continue
		}
		cfg := inst.Config()
		row := components.InstanceRow{
			Index:      idx,
			Port:       cfg.Port.String(),
			SampleRate: cfg.SampleRate,
			Grain:      inst.Grain(),
			Parent:     inst.Parent(),
			Sub:        inst.Sub(),
			Selected:   idx == selected,
		}
		if row.Parent >= 0 {
			row.Port = "sub"
		}
		if row.Sub >= 0 {
			if sub, err := reg.Instance(row.Sub); err == nil {
				row.SubVolL, row.SubVolR = sub.SubMixVolume()
			}
		}
		if w := inst.Worker(); w != nil {
			row.Grains = w.Grains()
			row.Buffer = w.BufferIndex()
			row.Paused = w.Paused()
		}
		snap.Instances = append(snap.Instances, row)
	}
	return snap
}

// SelectNext selects the occupied slot after the current one, wrapping.
func (m *ContextMixer) SelectNext() error {
	reg := m.ctx.Registry()
	indices := reg.Indices()
	if len(indices) == 0 {
		return nil
	}
	cur := reg.Selected()
	for _, idx := range indices {
		if idx > cur {
			return reg.Select(idx)
		}
	}
	return reg.Select(indices[0])
}

// ToggleRender flips the selected instance between paused and running.
func (m *ContextMixer) ToggleRender() error {
	reg := m.ctx.Registry()
	inst, err := reg.Current()
	if err != nil {
		return err
	}
	if w := inst.Worker(); w != nil && w.Paused() {
		return reg.ResumeRender()
	}
	return reg.PauseRender()
}
