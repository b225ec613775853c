// Package mixer keeps the table of active mixing engines. Each non-sub
// instance drives its own output worker; a sub-instance renders inside its
// parent's grain and is mixed in at a volume pair.
package mixer

import (
	"fmt"
	"math/bits"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/pcm"
	"github.com/dewi-tim/sasmux/internal/synth"
)

const (
	DefaultCapacity = 8
	MaxCapacity     = 64
)

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity sets the slot count, 1..MaxCapacity.
func WithCapacity(n int) Option {
	return func(r *Registry) { r.capacity = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// Registry is a fixed-capacity table of mixer instances plus the cursor the
// voice operations act on.
type Registry struct {
	mu       sync.Mutex
	heap     *heap.Heap
	opener   output.Opener
	log      *zap.Logger
	capacity int
	used     uint64
	slots    []*Instance
	cursor   int
}

// NewRegistry returns an empty registry whose engines and buffers live in h
// and whose workers open ports through opener.
func NewRegistry(h *heap.Heap, opener output.Opener, opts ...Option) (*Registry, error) {
	r := &Registry{
		heap:     h,
		opener:   opener,
		capacity: DefaultCapacity,
		cursor:   None,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.capacity < 1 || r.capacity > MaxCapacity {
		return nil, errs.New(errs.KindConfiguration, "mixer.NewRegistry", errs.CodeInvalidParameter, "capacity %d", r.capacity)
	}
	if r.log == nil {
		r.log = logging.Named("mixer")
	}
	r.slots = make([]*Instance, r.capacity)
	return r, nil
}

// Capacity is the slot count.
func (r *Registry) Capacity() int { return r.capacity }

// Len counts occupied slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bits.OnesCount64(r.used)
}

// Indices lists occupied slots in ascending order.
func (r *Registry) Indices() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for u := r.used; u != 0; u &= u - 1 {
		out = append(out, bits.TrailingZeros64(u))
	}
	return out
}

// Create validates cfg, takes the lowest free slot, builds the engine and,
// for a non-sub instance, starts its output worker. On failure nothing stays
// allocated.
func (r *Registry) Create(cfg Config) (_ int, err error) {
	const op = "mixer.Create"

	r.mu.Lock()
	defer r.mu.Unlock()

	ecfg, grain, parent, err := r.validateLocked(cfg)
	if err != nil {
		return None, err
	}

	idx := bits.TrailingZeros64(^r.used)
	if idx >= r.capacity {
		return None, errs.New(errs.KindResourceExhausted, op, errs.CodeBusy, "all %d instance slots in use", r.capacity)
	}

	inst := &Instance{index: idx, cfg: cfg, grain: grain, parent: parent}
	defer func() {
		if err != nil {
			err = multierr.Append(err, r.releaseMemory(inst))
		}
	}()

	need, err := synth.NeededMemorySize(ecfg)
	if err != nil {
		return None, err
	}
	mem, p, err := r.heap.AllocBytes(need, 64)
	if err != nil {
		return None, err
	}
	inst.memPtr = p
	if inst.engine, err = synth.New(ecfg, mem); err != nil {
		return None, err
	}
	if err = inst.engine.SetGrain(grain); err != nil {
		return None, err
	}

	if parent != nil {
		inst.subVolL.Store(int32(cfg.SubMixVolL))
		inst.subVolR.Store(int32(cfg.SubMixVolR))
		parent.sub.Store(inst)
	} else {
		b, sp, err := r.heap.AllocBytes(grain*2*pcm.BytesPerSample, 64)
		if err != nil {
			return None, err
		}
		inst.scratch, inst.scratchPtr = pcm.Int16s(b), sp

		inst.worker = output.NewWorker(r.opener, r.heap, r.log.Named("output"))
		err = inst.worker.Start(output.WorkerConfig{
			Name: fmt.Sprintf("instance%d", idx),
			Port: output.PortParams{
				Class:      cfg.Port,
				Grain:      grain,
				SampleRate: cfg.SampleRate,
				Format:     output.FormatS16Stereo,
			},
			Thread: cfg.Thread,
			Render: inst.RenderGrain,
		})
		if err != nil {
			return None, err
		}
	}

	r.used |= 1 << idx
	r.slots[idx] = inst
	r.log.Debug("instance created",
		zap.Int("index", idx),
		zap.Bool("sub", parent != nil),
		zap.Int("grain", grain),
		zap.String("engine", ecfg.String()))
	return idx, nil
}

func (r *Registry) validateLocked(cfg Config) (synth.Config, int, *Instance, error) {
	const op = "mixer.Create"

	conf := cfg.EngineConfig
	if conf == "" {
		conf = synth.DefaultConfig
	}
	ecfg, err := synth.ParseConfig(conf)
	if err != nil {
		return synth.Config{}, 0, nil, err
	}
	grain := cfg.Grain
	if grain == 0 {
		grain = ecfg.Grains
	}
	if grain < 0 || grain > output.GrainMax || grain%output.GrainUnit != 0 || grain > ecfg.Grains {
		return synth.Config{}, 0, nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidGrain,
			"grain %d (engine numGrains %d)", grain, ecfg.Grains)
	}

	if !cfg.IsSub {
		if cfg.Port != output.PortMain && cfg.Port != output.PortBGM {
			return synth.Config{}, 0, nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidPort, "port class %s", cfg.Port)
		}
		if cfg.SampleRate <= 0 {
			return synth.Config{}, 0, nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "sample rate %d", cfg.SampleRate)
		}
		if cfg.Parent != None {
			return synth.Config{}, 0, nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "parent %d set on a non-sub instance", cfg.Parent)
		}
		return ecfg, grain, nil, nil
	}

	parent := r.lookupLocked(cfg.Parent)
	switch {
	case parent == nil:
		return synth.Config{}, 0, nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "parent %d does not exist", cfg.Parent)
	case parent.IsSub():
		return synth.Config{}, 0, nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "parent %d is itself a sub-instance", cfg.Parent)
	case parent.sub.Load() != nil:
		return synth.Config{}, 0, nil, errs.New(errs.KindState, op, errs.CodeBusy, "parent %d already has a sub-instance", cfg.Parent)
	case parent.grain != grain:
		return synth.Config{}, 0, nil, errs.New(errs.KindConfiguration, op, errs.CodeInvalidGrain, "grain %d, parent grain %d", grain, parent.grain)
	}
	if err := checkMixVolume(op, cfg.SubMixVolL, cfg.SubMixVolR); err != nil {
		return synth.Config{}, 0, nil, err
	}
	return ecfg, grain, parent, nil
}

// Destroy stops the instance's worker, or detaches it from its parent, and
// returns its memory to the heap. A parent must outlive its sub-instance.
func (r *Registry) Destroy(index int) error {
	const op = "mixer.Destroy"

	r.mu.Lock()
	defer r.mu.Unlock()

	inst := r.lookupLocked(index)
	if inst == nil {
		return errs.New(errs.KindInvalidHandle, op, errs.CodeInvalidParameter, "no instance %d", index)
	}
	if s := inst.sub.Load(); s != nil {
		return errs.New(errs.KindState, op, errs.CodeBusy, "instance %d still has sub-instance %d", index, s.index)
	}
	return r.destroyLocked(inst)
}

func (r *Registry) destroyLocked(inst *Instance) error {
	var err error
	if inst.worker != nil {
		if werr := inst.worker.Err(); werr != nil {
			r.log.Warn("instance output had failed", zap.Int("index", inst.index), zap.Error(werr))
		}
		err = multierr.Append(err, inst.worker.Stop())
	}
	if p := inst.parent; p != nil {
		p.sub.Store(nil)
		for p.rendering.Load() {
			runtime.Gosched()
		}
	}
	err = multierr.Append(err, r.releaseMemory(inst))

	r.used &^= 1 << inst.index
	r.slots[inst.index] = nil
	if r.cursor == inst.index {
		r.cursor = None
	}
	r.log.Debug("instance destroyed", zap.Int("index", inst.index))
	return err
}

func (r *Registry) releaseMemory(inst *Instance) error {
	var err error
	if inst.scratchPtr != 0 {
		err = multierr.Append(err, r.heap.Free(inst.scratchPtr))
		inst.scratch, inst.scratchPtr = nil, 0
	}
	if inst.memPtr != 0 {
		err = multierr.Append(err, r.heap.Free(inst.memPtr))
		inst.memPtr = 0
	}
	return err
}

// Close destroys every instance, sub-instances first.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for _, pass := range [...]bool{true, false} {
		for _, inst := range r.slots {
			if inst != nil && inst.IsSub() == pass {
				err = multierr.Append(err, r.destroyLocked(inst))
			}
		}
	}
	return err
}

// Instance returns the instance at index.
func (r *Registry) Instance(index int) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.lookupLocked(index)
	if inst == nil {
		return nil, errs.New(errs.KindInvalidHandle, "mixer.Instance", errs.CodeInvalidParameter, "no instance %d", index)
	}
	return inst, nil
}

// Select points the cursor at index.
func (r *Registry) Select(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupLocked(index) == nil {
		return errs.New(errs.KindInvalidHandle, "mixer.Select", errs.CodeInvalidParameter, "no instance %d", index)
	}
	r.cursor = index
	return nil
}

// Selected returns the cursor, or None.
func (r *Registry) Selected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Current returns the selected instance.
func (r *Registry) Current() (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.lookupLocked(r.cursor)
	if inst == nil {
		return nil, errs.New(errs.KindState, "mixer.Current", errs.CodeNotInitialized, "no instance selected")
	}
	return inst, nil
}

func (r *Registry) lookupLocked(index int) *Instance {
	if index < 0 || index >= r.capacity {
		return nil
	}
	return r.slots[index]
}

func checkMixVolume(op string, l, rv int) error {
	if l < 0 || l > synth.VolumeMax || rv < 0 || rv > synth.VolumeMax {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidVolume, "sub-mix volume %d/%d", l, rv)
	}
	return nil
}
