package mixer

import (
	"sync/atomic"

	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/pcm"
	"github.com/dewi-tim/sasmux/internal/synth"
)

// None marks an absent instance index.
const None = -1

// Config describes one mixer instance.
type Config struct {
	// EngineConfig is the synth configuration string; empty selects
	// synth.DefaultConfig.
	EngineConfig string
	Port         output.PortClass
	SampleRate   int
	// Grain in frames; zero takes numGrains from EngineConfig.
	Grain  int
	Thread output.ThreadParams

	// IsSub makes the instance render inside Parent's grain instead of on
	// its own output worker.
	IsSub      bool
	Parent     int
	SubMixVolL int
	SubMixVolR int
}

// Instance is one active mixing engine.
type Instance struct {
	index  int
	cfg    Config
	grain  int
	engine *synth.Engine

	memPtr     heap.Ptr
	scratch    []int16
	scratchPtr heap.Ptr

	worker *output.Worker
	parent *Instance

	sub       atomic.Pointer[Instance]
	subVolL   atomic.Int32
	subVolR   atomic.Int32
	rendering atomic.Bool
}

// Index is the slot the instance occupies.
func (i *Instance) Index() int { return i.index }

// Config returns the creation config.
func (i *Instance) Config() Config { return i.cfg }

// Grain is the instance grain in frames.
func (i *Instance) Grain() int { return i.grain }

// Engine returns the mixing engine.
func (i *Instance) Engine() *synth.Engine { return i.engine }

// IsSub reports whether the instance renders inside a parent.
func (i *Instance) IsSub() bool { return i.parent != nil }

// Parent returns the parent index, or None.
func (i *Instance) Parent() int {
	if i.parent == nil {
		return None
	}
	return i.parent.index
}

// Sub returns the attached sub-instance index, or None.
func (i *Instance) Sub() int {
	if s := i.sub.Load(); s != nil {
		return s.index
	}
	return None
}

// SubMixVolume returns the volume pair a sub-instance is mixed at.
func (i *Instance) SubMixVolume() (int, int) {
	return int(i.subVolL.Load()), int(i.subVolR.Load())
}

// Worker returns the output worker, nil for a sub-instance.
func (i *Instance) Worker() *output.Worker { return i.worker }

// RenderGrain fills buf with one stereo grain: the sub-instance first, then
// this engine, then the sub output mixed in at its volume pair.
func (i *Instance) RenderGrain(buf []int16) {
	i.rendering.Store(true)
	defer i.rendering.Store(false)

	sub := i.sub.Load()
	if sub != nil {
		if err := sub.engine.Render(i.scratch); err != nil {
			pcm.Silence(i.scratch)
		}
	}
	if err := i.engine.Render(buf); err != nil {
		pcm.Silence(buf)
	}
	if sub != nil {
		pcm.MixScaled(buf, i.scratch, sub.subVolL.Load(), sub.subVolR.Load())
	}
}
