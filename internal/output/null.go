package output

import (
	"sync"
	"time"
)

// Sink receives every grain a NullOpener port accepts. The buffer is only
// valid for the duration of the call.
type Sink func(p PortParams, buf []int16)

// NullOpener opens ports that discard audio, paced in real time so render
// loops run at the rate a device would drain them. With Unpaced set the
// ports accept grains as fast as they arrive, which suits offline rendering.
type NullOpener struct {
	Sink    Sink
	Unpaced bool
}

// Open returns a null port.
func (o NullOpener) Open(p PortParams) (Port, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &nullPort{params: p, sink: o.Sink, unpaced: o.Unpaced}, nil
}

type nullPort struct {
	mu       sync.Mutex
	params   PortParams
	sink     Sink
	unpaced  bool
	playEnd  time.Time
	released bool
	volL     int
	volR     int
}

func (p *nullPort) period() time.Duration {
	return time.Duration(p.params.Grain) * time.Second / time.Duration(p.params.SampleRate)
}

func (p *nullPort) Output(buf []int16) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return errReleased("output.Output")
	}
	period := p.period()
	end := p.playEnd
	sink, params := p.sink, p.params
	p.mu.Unlock()

	now := time.Now()
	pending := end.After(now)
	if !p.unpaced {
		if pending {
			time.Sleep(end.Sub(now))
			now = end
		} else if len(buf) == 0 {
			time.Sleep(period)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(buf) == 0 {
		p.playEnd = time.Time{}
		return nil
	}
	if sink != nil {
		sink(params, buf)
	}
	p.playEnd = now.Add(period)
	return nil
}

func (p *nullPort) SetVolume(l, r int) error {
	if err := checkVolume("output.SetVolume", l, r); err != nil {
		return err
	}
	p.mu.Lock()
	p.volL, p.volR = l, r
	p.mu.Unlock()
	return nil
}

func (p *nullPort) SetConfig(np PortParams) error {
	if err := np.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params = np
	return nil
}

func (p *nullPort) Params() PortParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

func (p *nullPort) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
	return nil
}

var _ Opener = NullOpener{}
