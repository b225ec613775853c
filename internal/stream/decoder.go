// Package stream decodes whole audio files in the background: the file sits
// in one heap buffer, a decode goroutine turns it into PCM one unit at a
// time, and two PCM buffers alternate between the codec and the output port.
package stream

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/codec"
	"github.com/dewi-tim/sasmux/internal/codecmem"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/pcm"
)

// Status is the playback state of a Decoder.
type Status int32

const (
	StatusCreated Status = iota
	StatusPlaying
	StatusPaused
	StatusStopped
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Decoder is one decode session over one file.
type Decoder struct {
	path   string
	info   Info
	heap   *heap.Heap
	cmem   *codecmem.Manager
	log    *zap.Logger
	thread output.ThreadParams

	in    []byte
	inPtr heap.Ptr
	out   [2][]byte
	outP  [2]heap.Ptr
	block *codecmem.Block
	ctx   codec.Context
	port  output.Port

	header int64
	end    int64
	unit   int64
	grain  int

	offset  atomic.Int64
	status  atomic.Int32
	index   atomic.Int32
	decoded atomic.Uint64
	running atomic.Bool

	// ctl serializes the control calls that start or join the loop.
	ctl    sync.Mutex
	wg     sync.WaitGroup
	mu     sync.Mutex
	err    error
	done   chan struct{}
	closed bool
}

// Path returns the file the decoder was opened on.
func (d *Decoder) Path() string { return d.path }

// Info returns the parsed stream header.
func (d *Decoder) Info() Info { return d.info }

// HeaderOffset is the offset of the first unit.
func (d *Decoder) HeaderOffset() int64 { return d.header }

// UnitSize is the elementary-stream bytes per unit.
func (d *Decoder) UnitSize() int64 { return d.unit }

// Grain is the PCM frames one unit decodes to.
func (d *Decoder) Grain() int { return d.grain }

// Units is the number of units in the stream, a short final unit included.
func (d *Decoder) Units() int {
	return int((d.end - d.header + d.unit - 1) / d.unit)
}

// SeekLimit is the highest unit Seek accepts: the count of whole units, so
// the target never passes the end of the data.
func (d *Decoder) SeekLimit() int {
	return int((d.end - d.header) / d.unit)
}

// CurrentOffset is the read offset of the next unit.
func (d *Decoder) CurrentOffset() int64 { return d.offset.Load() }

// UnitsDecoded counts units handed to the port since StartPlayback.
func (d *Decoder) UnitsDecoded() uint64 { return d.decoded.Load() }

// BufferIndex is the PCM buffer the loop decodes into next.
func (d *Decoder) BufferIndex() int { return int(d.index.Load()) }

// State returns the playback status.
func (d *Decoder) State() Status { return Status(d.status.Load()) }

// IsExhausted reports whether the read offset reached the end of the data.
func (d *Decoder) IsExhausted() bool { return d.offset.Load() >= d.end }

// Duration is the play time of the stream.
func (d *Decoder) Duration() time.Duration { return d.info.Duration() }

// Position is the play time of the read offset.
func (d *Decoder) Position() time.Duration {
	off := min(d.offset.Load(), d.end) - d.header
	if off < 0 || d.info.Codec.SampleRate <= 0 {
		return 0
	}
	frames := off / d.unit * int64(d.grain)
	return time.Duration(frames) * time.Second / time.Duration(d.info.Codec.SampleRate)
}

// Err returns the error that ended the decode loop, if any.
func (d *Decoder) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Done is closed when the current decode loop exits.
func (d *Decoder) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// SetVolume sets the output port volume, 0..output.VolumeMax.
func (d *Decoder) SetVolume(l, r int) error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.closed {
		return errs.New(errs.KindInvalidHandle, "stream.SetVolume", errs.CodeNotInitialized, "decoder closed")
	}
	return d.port.SetVolume(l, r)
}

// StartPlayback resets the codec, rewinds to the first unit and launches the
// decode goroutine.
func (d *Decoder) StartPlayback() error {
	const op = "stream.StartPlayback"

	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.closed {
		return errs.New(errs.KindInvalidHandle, op, errs.CodeNotInitialized, "decoder closed")
	}
	if d.running.Load() {
		return errs.New(errs.KindState, op, errs.CodeBusy, "already playing")
	}
	d.wg.Wait()

	if err := d.ctx.Reset(); err != nil {
		return errs.Wrap(errs.KindHardwareRejected, op, errs.CodeCodecInvalidValue, err)
	}
	if err := d.port.SetVolume(output.VolumeMax, output.VolumeMax); err != nil {
		d.log.Warn("set port volume", zap.Error(err))
	}

	done := make(chan struct{})
	d.mu.Lock()
	d.err = nil
	d.done = done
	d.mu.Unlock()

	d.offset.Store(d.header)
	d.index.Store(0)
	d.decoded.Store(0)
	d.status.Store(int32(StatusPlaying))
	d.running.Store(true)

	d.wg.Add(1)
	go d.run(done)

	d.log.Debug("playback started", zap.String("path", d.path), zap.Int("units", d.Units()))
	return nil
}

// Pause makes the loop submit silence flushes instead of decoding.
func (d *Decoder) Pause() {
	d.status.CompareAndSwap(int32(StatusPlaying), int32(StatusPaused))
}

// Resume continues decoding after Pause.
func (d *Decoder) Resume() {
	d.status.CompareAndSwap(int32(StatusPaused), int32(StatusPlaying))
}

// StopPlayback pauses, pushes the read offset past the end so the loop
// exits, and waits for it. Stopping a stopped decoder is a no-op.
func (d *Decoder) StopPlayback() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()
	return d.stopLocked()
}

func (d *Decoder) stopLocked() error {
	d.Pause()
	d.offset.Store(d.end + 1)
	d.wg.Wait()
	d.status.Store(int32(StatusStopped))
	return d.Err()
}

// Seek moves the read offset to unit. The loop drops a unit whose decode
// raced with the seek.
func (d *Decoder) Seek(unit int) error {
	const op = "stream.Seek"
	target := d.header + int64(unit)*d.unit
	if unit < 0 || target > d.end {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "unit %d of %d", unit, d.Units())
	}
	d.offset.Store(target)
	return nil
}

// DecodeRange decodes units [begin, begin+count) into dst without the
// decode goroutine. It stops early at the end of the data or when dst
// cannot hold another grain, and returns the PCM bytes written.
func (d *Decoder) DecodeRange(begin, count int, dst []byte) (int, error) {
	const op = "stream.DecodeRange"

	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.closed {
		return 0, errs.New(errs.KindInvalidHandle, op, errs.CodeNotInitialized, "decoder closed")
	}
	if d.running.Load() {
		return 0, errs.New(errs.KindState, op, errs.CodeBusy, "playback running")
	}
	off := d.header + int64(begin)*d.unit
	if begin < 0 || count < 0 || off > d.end {
		return 0, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "units %d+%d of %d", begin, count, d.Units())
	}
	if err := d.ctx.Reset(); err != nil {
		return 0, errs.Wrap(errs.KindHardwareRejected, op, errs.CodeCodecInvalidValue, err)
	}

	maxPCM := d.ctx.MaxPCMSize()
	written := 0
	for i := 0; i < count && off < d.end; i++ {
		if len(dst)-written < maxPCM {
			break
		}
		res, err := d.ctx.Decode(d.in[off:d.end], dst[written:])
		if err != nil {
			return written, errs.Wrap(errs.KindHardwareRejected, op, errs.CodeCodecInvalidValue, err)
		}
		off += int64(res.Consumed)
		written += res.Produced
	}
	return written, nil
}

func (d *Decoder) run(done chan struct{}) {
	defer d.wg.Done()
	defer close(done)
	defer d.running.Store(false)

	if d.thread.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	idx := 0
	for {
		off := d.offset.Load()
		if off >= d.end {
			break
		}
		if Status(d.status.Load()) != StatusPlaying {
			if err := d.port.Output(nil); err != nil {
				d.fail(err)
				return
			}
			continue
		}

		buf := d.out[idx]
		res, err := d.ctx.Decode(d.in[off:d.end], buf)
		if err != nil {
			d.fail(errs.Wrap(errs.KindHardwareRejected, "stream.decode", errs.CodeCodecInvalidValue, err))
			return
		}
		if res.Consumed <= 0 {
			d.fail(errs.New(errs.KindHardwareRejected, "stream.decode", errs.CodeCodecInvalidValue, "codec consumed nothing at offset %d", off))
			return
		}
		// A seek or stop moved the offset while this unit decoded.
		if !d.offset.CompareAndSwap(off, off+int64(res.Consumed)) {
			continue
		}
		if err := d.port.Output(pcm.Int16s(buf[:res.Produced])); err != nil {
			d.fail(err)
			return
		}
		idx ^= 1
		d.index.Store(int32(idx))
		d.decoded.Add(1)
	}

	if err := d.port.Output(nil); err != nil {
		d.log.Debug("final flush", zap.Error(err))
	}
	d.status.CompareAndSwap(int32(StatusPlaying), int32(StatusExhausted))
}

func (d *Decoder) fail(err error) {
	d.log.Error("decode loop stopped", zap.String("path", d.path), zap.Error(err))
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	d.status.Store(int32(StatusStopped))
}

// Close stops playback and releases the port, codec context, codec memory
// and buffers in reverse order of acquisition. Every step runs.
func (d *Decoder) Close() error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	if d.closed {
		return nil
	}
	err := d.stopLocked()
	d.closed = true

	err = multierr.Append(err, d.release())
	d.log.Debug("decoder closed", zap.String("path", d.path))
	return err
}

// release frees whatever has been acquired so far, newest first.
func (d *Decoder) release() error {
	var err error
	if d.port != nil {
		err = multierr.Append(err, d.port.Release())
		d.port = nil
	}
	for i := len(d.outP) - 1; i >= 0; i-- {
		if d.outP[i] != 0 {
			err = multierr.Append(err, d.heap.Free(d.outP[i]))
			d.out[i], d.outP[i] = nil, 0
		}
	}
	if d.ctx != nil {
		err = multierr.Append(err, d.ctx.Close())
		d.ctx = nil
	}
	if d.block != nil {
		err = multierr.Append(err, d.cmem.Free(d.block))
		d.block = nil
	}
	if d.inPtr != 0 {
		err = multierr.Append(err, d.heap.Free(d.inPtr))
		d.in, d.inPtr = nil, 0
	}
	return err
}
