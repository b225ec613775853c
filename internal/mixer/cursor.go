package mixer

import (
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/synth"
)

// The operations below act on the instance chosen with Select.

func (r *Registry) engine() (*synth.Engine, error) {
	inst, err := r.Current()
	if err != nil {
		return nil, err
	}
	return inst.engine, nil
}

// SetWaveform assigns PCM to a voice of the selected instance.
func (r *Registry) SetWaveform(voice int, w synth.Waveform) error {
	e, err := r.engine()
	if err != nil {
		return err
	}
	return e.SetWaveform(voice, w)
}

// SetNoise makes a voice of the selected instance a noise generator.
func (r *Registry) SetNoise(voice, clk int) error {
	e, err := r.engine()
	if err != nil {
		return err
	}
	return e.SetNoise(voice, clk)
}

func (r *Registry) SetPitch(voice, pitch int) error {
	e, err := r.engine()
	if err != nil {
		return err
	}
	return e.SetPitch(voice, pitch)
}

func (r *Registry) SetVolume(voice, l, rv, wl, wr int) error {
	e, err := r.engine()
	if err != nil {
		return err
	}
	return e.SetVolume(voice, l, rv, wl, wr)
}

func (r *Registry) SetEnvelope(voice int, env synth.Envelope) error {
	e, err := r.engine()
	if err != nil {
		return err
	}
	return e.SetEnvelope(voice, env)
}

func (r *Registry) KeyOn(voice int) error {
	e, err := r.engine()
	if err != nil {
		return err
	}
	return e.KeyOn(voice)
}

func (r *Registry) KeyOff(voice int) error {
	e, err := r.engine()
	if err != nil {
		return err
	}
	return e.KeyOff(voice)
}

// EndState reports whether a voice of the selected instance is silent.
func (r *Registry) EndState(voice int) (bool, error) {
	e, err := r.engine()
	if err != nil {
		return false, err
	}
	return e.EndState(voice)
}

// PauseRender holds the selected instance's output worker. Sub-instances
// follow their parent.
func (r *Registry) PauseRender() error {
	inst, err := r.Current()
	if err != nil {
		return err
	}
	if inst.worker == nil {
		return errs.New(errs.KindState, "mixer.PauseRender", errs.CodeInvalidParameter, "instance %d renders inside its parent", inst.index)
	}
	inst.worker.Pause()
	return nil
}

// ResumeRender releases the selected instance's output worker.
func (r *Registry) ResumeRender() error {
	inst, err := r.Current()
	if err != nil {
		return err
	}
	if inst.worker == nil {
		return errs.New(errs.KindState, "mixer.ResumeRender", errs.CodeInvalidParameter, "instance %d renders inside its parent", inst.index)
	}
	inst.worker.Resume()
	return nil
}

// SetSubMixVolume sets the volume pair the sub-instance is mixed at. The
// selected instance may be the sub-instance or its parent.
func (r *Registry) SetSubMixVolume(l, rv int) error {
	const op = "mixer.SetSubMixVolume"
	inst, err := r.Current()
	if err != nil {
		return err
	}
	if err := checkMixVolume(op, l, rv); err != nil {
		return err
	}
	sub := inst
	if !inst.IsSub() {
		if sub = inst.sub.Load(); sub == nil {
			return errs.New(errs.KindState, op, errs.CodeNotInitialized, "instance %d has no sub-instance", inst.index)
		}
	}
	sub.subVolL.Store(int32(l))
	sub.subVolR.Store(int32(rv))
	return nil
}
