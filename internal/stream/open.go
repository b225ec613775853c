package stream

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/codec"
	"github.com/dewi-tim/sasmux/internal/codecmem"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/physmem"
	"github.com/dewi-tim/sasmux/internal/storage"
)

// Deps are the collaborators a decoder draws on.
type Deps struct {
	Heap     *heap.Heap
	Storage  storage.Storage
	Codecs   codec.Engine
	CodecMem *codecmem.Manager
	Opener   output.Opener
	Logger   *zap.Logger
}

// Options tune one decoder.
type Options struct {
	// Memory is the attribute of the codec context memory.
	Memory physmem.Attr
	Thread output.ThreadParams
	// FramesPerUnit sets the PCM unit length; zero takes the codec default.
	FramesPerUnit int
}

// maxESPad is the input slack that covers the largest unit of any codec.
var maxESPad = max(
	codec.KindAT9.MaxESSize(),
	codec.KindMP3.MaxESSize(),
	codec.KindAAC.MaxESSize(),
	codec.KindPCM.MaxESSize(),
)

// Open reads path into the heap, parses its header, sets up codec memory,
// the codec context, two PCM buffers and a BGM output port. Any failure
// releases what was acquired, newest first, and returns no decoder.
func Open(deps Deps, path string, opts Options) (_ *Decoder, err error) {
	const op = "stream.Open"

	log := deps.Logger
	if log == nil {
		log = logging.Named("stream")
	}
	done := make(chan struct{})
	close(done)
	d := &Decoder{
		path:   path,
		heap:   deps.Heap,
		cmem:   deps.CodecMem,
		log:    log,
		thread: opts.Thread,
		done:   done,
	}
	defer func() {
		if err != nil {
			if rerr := d.release(); rerr != nil {
				err = multierr.Append(err, rerr)
			}
			log.Warn("decoder open failed", zap.String("path", path), zap.Error(err))
		}
	}()

	size, err := deps.Storage.Size(path)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeBadHeader, "%s is empty", path)
	}

	d.in, d.inPtr, err = deps.Heap.AllocBytes(codec.RoundUp(int(size)+maxESPad), codec.Alignment)
	if err != nil {
		return nil, err
	}
	n, err := deps.Storage.ReadFile(path, d.in)
	if err != nil {
		return nil, err
	}
	if int64(n) != size {
		return nil, errs.New(errs.KindIO, op, errs.CodeIOFailure, "read %d of %d bytes", n, size)
	}
	clear(d.in[n:])

	d.info, err = parse(d.in[:n])
	if err != nil {
		return nil, err
	}
	d.info.Codec.FramesPerUnit = opts.FramesPerUnit

	d.block, err = deps.CodecMem.Allocate(deps.Codecs, d.info.Codec, opts.Memory)
	if err != nil {
		return nil, err
	}
	d.ctx, err = deps.Codecs.Create(d.info.Codec, d.block)
	if err != nil {
		return nil, err
	}
	d.info.Codec = d.ctx.Info()

	channels := d.info.Codec.Channels
	pcmSize := d.ctx.MaxPCMSize()
	d.grain = pcmSize / channels / 2
	for i := range d.out {
		d.out[i], d.outP[i], err = deps.Heap.AllocBytes(codec.RoundUp(pcmSize), codec.Alignment)
		if err != nil {
			return nil, err
		}
	}

	format, err := output.FormatForChannels(channels)
	if err != nil {
		return nil, err
	}
	d.port, err = deps.Opener.Open(output.PortParams{
		Class:      output.PortBGM,
		Grain:      d.grain,
		SampleRate: d.info.Codec.SampleRate,
		Format:     format,
	})
	if err != nil {
		return nil, err
	}

	d.header = int64(d.info.HeaderOffset)
	d.end = int64(d.info.DataEnd)
	d.unit = int64(d.ctx.UnitSize())
	d.offset.Store(d.header)

	log.Debug("decoder opened",
		zap.String("path", path),
		zap.Stringer("codec", d.info.Codec.Kind),
		zap.Int("channels", channels),
		zap.Int("rate", d.info.Codec.SampleRate),
		zap.Int64("header", d.header),
		zap.Int64("unit", d.unit),
		zap.Int("grain", d.grain))
	return d, nil
}
