package output

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/logging"
)

const hostChannels = 2

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func otoContext(rate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: hostChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = errs.Wrap(errs.KindHardwareRejected, "output.NewOtoOpener", errs.CodePortRejected, err)
			return
		}
		<-ready
		otoCtx, otoRate = ctx, rate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if rate != otoRate {
		return nil, errs.New(errs.KindHardwareRejected, "output.NewOtoOpener", errs.CodePortRejected,
			"device already running at %d Hz, requested %d Hz", otoRate, rate)
	}
	return otoCtx, nil
}

// OtoOpener opens ports on the host audio device. Every port becomes an oto
// player on one shared stereo s16 context, so all ports must use the
// device rate.
type OtoOpener struct {
	ctx  *oto.Context
	rate int
	log  *zap.Logger
}

// NewOtoOpener starts the host device at rate.
func NewOtoOpener(rate int) (*OtoOpener, error) {
	ctx, err := otoContext(rate)
	if err != nil {
		return nil, err
	}
	return &OtoOpener{ctx: ctx, rate: rate, log: logging.Named("oto")}, nil
}

// SampleRate is the device rate.
func (o *OtoOpener) SampleRate() int { return o.rate }

// Open creates a player for p.
func (o *OtoOpener) Open(p PortParams) (Port, error) {
	if err := o.check(p); err != nil {
		return nil, err
	}
	port := &otoPort{
		rate:  o.rate,
		queue: make(chan *submission, 1),
		log:   o.log,
	}
	port.params.Store(&p)
	port.volL.Store(VolumeMax)
	port.volR.Store(VolumeMax)

	port.player = o.ctx.NewPlayer(port)
	port.player.SetBufferSize(2 * p.Grain * hostChannels * 2)
	port.player.Play()
	o.log.Debug("port opened", zap.Stringer("class", p.Class), zap.Int("grain", p.Grain))
	return port, nil
}

func (o *OtoOpener) check(p PortParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.SampleRate != o.rate {
		return errs.New(errs.KindHardwareRejected, "output.Open", errs.CodePortRejected,
			"port rate %d Hz, device rate %d Hz", p.SampleRate, o.rate)
	}
	return nil
}

// submission is one grain handed to the device reader.
type submission struct {
	buf      []int16
	channels int
	done     chan struct{}
}

type otoPort struct {
	rate   int
	player *oto.Player
	log    *zap.Logger

	params atomic.Pointer[PortParams]
	volL   atomic.Int32
	volR   atomic.Int32
	closed atomic.Bool

	queue chan *submission

	// Producer side, owned by the goroutine calling Output.
	last *submission

	// Reader side, owned by oto's goroutine.
	cur *submission
	pos int
}

func (p *otoPort) Output(buf []int16) error {
	const op = "output.Output"
	if p.closed.Load() {
		return errReleased(op)
	}

	pending := p.last != nil
	if pending {
		<-p.last.done
		p.last = nil
	}
	params := p.params.Load()
	if len(buf) == 0 {
		if !pending {
			time.Sleep(time.Duration(params.Grain) * time.Second / time.Duration(params.SampleRate))
		}
		return nil
	}

	s := &submission{buf: buf, channels: params.Format.Channels(), done: make(chan struct{})}
	p.queue <- s
	p.last = s
	return nil
}

// Read feeds oto. An empty queue plays silence rather than blocking the
// device.
func (p *otoPort) Read(b []byte) (int, error) {
	volL, volR := p.volL.Load(), p.volR.Load()
	n := 0
	for n+4 <= len(b) {
		if p.cur == nil {
			select {
			case s := <-p.queue:
				p.cur, p.pos = s, 0
			default:
				clear(b[n:])
				return len(b), nil
			}
		}
		s := p.cur
		var l, r int16
		if s.channels == 1 {
			l = s.buf[p.pos]
			r = l
			p.pos++
		} else {
			l, r = s.buf[p.pos], s.buf[p.pos+1]
			p.pos += 2
		}
		putSample(b[n:], scale(l, volL))
		putSample(b[n+2:], scale(r, volR))
		n += 4
		if p.pos+s.channels > len(s.buf) {
			close(s.done)
			p.cur = nil
		}
	}
	clear(b[n:])
	return len(b), nil
}

func (p *otoPort) SetVolume(l, r int) error {
	if err := checkVolume("output.SetVolume", l, r); err != nil {
		return err
	}
	p.volL.Store(int32(l))
	p.volR.Store(int32(r))
	return nil
}

func (p *otoPort) SetConfig(np PortParams) error {
	if err := np.Validate(); err != nil {
		return err
	}
	if np.SampleRate != p.rate {
		return errs.New(errs.KindHardwareRejected, "output.SetConfig", errs.CodePortRejected,
			"port rate %d Hz, device rate %d Hz", np.SampleRate, p.rate)
	}
	p.params.Store(&np)
	return nil
}

func (p *otoPort) Params() PortParams { return *p.params.Load() }

func (p *otoPort) Release() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.player.Close()
	if err != nil {
		return errs.Wrap(errs.KindHardwareRejected, "output.Release", errs.CodePortRejected, err)
	}
	return nil
}

func scale(s int16, vol int32) int16 {
	return int16(int32(s) * vol / VolumeMax)
}

func putSample(b []byte, s int16) {
	b[0] = byte(s)
	b[1] = byte(uint16(s) >> 8)
}

var _ Opener = (*OtoOpener)(nil)
