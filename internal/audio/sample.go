package audio

import (
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/container"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/pcm"
	"github.com/dewi-tim/sasmux/internal/synth"
)

// Sample is a whole 16-bit PCM wave file held in the heap for voice
// playback. Stereo data is stored planar: all left frames, then all right.
type Sample struct {
	ctx  *Context
	path string
	ptr  heap.Ptr
	file []byte

	data       []int16
	channels   int
	sampleRate int
	frames     int
	loop       *container.SampleLoop
}

// Path returns the file the sample was loaded from.
func (s *Sample) Path() string { return s.path }

// Channels returns 1 or 2.
func (s *Sample) Channels() int { return s.channels }

// SampleRate returns the recorded rate in Hz.
func (s *Sample) SampleRate() int { return s.sampleRate }

// Frames returns the frames per channel.
func (s *Sample) Frames() int { return s.frames }

// Loop returns the smpl loop, or nil.
func (s *Sample) Loop() *container.SampleLoop { return s.loop }

// Data returns channel ch as a view into the heap.
func (s *Sample) Data(ch int) []int16 {
	if ch < 0 || ch >= s.channels || s.data == nil {
		return nil
	}
	return s.data[ch*s.frames : (ch+1)*s.frames]
}

// Waveform returns channel ch as a voice waveform. A smpl loop makes it
// loop from the loop start.
func (s *Sample) Waveform(ch int) (synth.Waveform, error) {
	d := s.Data(ch)
	if d == nil {
		return synth.Waveform{}, errs.New(errs.KindConfiguration, "audio.Waveform", errs.CodeInvalidParameter, "channel %d of %d", ch, s.channels)
	}
	w := synth.Waveform{Samples: d}
	if s.loop != nil && int(s.loop.Start) < len(d) {
		w.Loop = true
		w.LoopStart = int(s.loop.Start)
	}
	return w, nil
}

// Free returns the sample memory to the heap. Freeing twice is an error.
func (s *Sample) Free() error {
	c := s.ctx
	c.mu.Lock()
	_, ok := c.samples[s]
	delete(c.samples, s)
	c.mu.Unlock()
	if !ok {
		return errs.New(errs.KindInvalidHandle, "audio.Sample.Free", errs.CodeNotInitialized, "sample already freed")
	}
	return s.free()
}

func (s *Sample) free() error {
	err := s.ctx.heap.Free(s.ptr)
	s.ptr, s.file, s.data = 0, nil, nil
	return err
}

// LoadSample reads a PCM wave file into the heap.
func (c *Context) LoadSample(path string) (_ *Sample, err error) {
	const op = "audio.LoadSample"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errClosed(op)
	}

	size, err := c.storage.Size(path)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeBadHeader, "%s is empty", path)
	}
	file, ptr, err := c.heap.AllocBytes(int(size), 64)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if ferr := c.heap.Free(ptr); ferr != nil {
				c.log.Warn("free sample buffer", zap.Error(ferr))
			}
		}
	}()

	n, err := c.storage.ReadFile(path, file)
	if err != nil {
		return nil, err
	}
	if container.IsVAG(file[:n]) {
		v, err := container.ParseVAG(file[:n])
		if err != nil {
			return nil, errs.Wrap(errs.KindHardwareRejected, op, errs.CodeBadHeader, err)
		}
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeUnsupportedFormat, "%s: VAG ADPCM at %d Hz needs a voice codec", path, v.SampleRate)
	}
	h, err := container.ParseRIFF(file[:n])
	if err != nil {
		return nil, errs.Wrap(errs.KindHardwareRejected, op, errs.CodeBadHeader, err)
	}
	if h.Format != container.FormatPCM || h.Fmt.BitsPerSample != 16 {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeUnsupportedFormat, "%s: %s at %d bits", path, h.Format, h.Fmt.BitsPerSample)
	}
	ch := h.Channels()
	if ch != 1 && ch != 2 {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeUnsupportedFormat, "%s: %d channels", path, ch)
	}

	end := min(n, h.DataOffset+h.DataSize)
	frames := (end - h.DataOffset) / (2 * ch)
	if h.DataOffset%2 != 0 {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeBadHeader, "%s: odd data offset %d", path, h.DataOffset)
	}
	data := pcm.Int16s(file[h.DataOffset : h.DataOffset+frames*ch*2])
	if ch == 2 {
		src := append([]int16(nil), data...)
		pcm.Deinterleave(data[:frames], data[frames:], src)
	}

	s := &Sample{
		ctx:        c,
		path:       path,
		ptr:        ptr,
		file:       file,
		data:       data,
		channels:   ch,
		sampleRate: h.SampleRate(),
		frames:     frames,
	}
	if h.HasSmpl && h.Smpl.SampleLoops > 0 {
		loop := h.Smpl.Loop
		s.loop = &loop
	}
	c.samples[s] = struct{}{}

	c.log.Debug("sample loaded",
		zap.String("path", path),
		zap.Int("channels", ch),
		zap.Int("frames", frames),
		zap.Bool("loop", s.loop != nil))
	return s, nil
}
