package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dewi-tim/sasmux/internal/audio"
	"github.com/dewi-tim/sasmux/internal/container"
	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/pcm"
	"github.com/dewi-tim/sasmux/internal/synth"
)

// toneTableLen is the length of the generated sine cycle in frames.
const toneTableLen = 64

var (
	toneFreq     float64
	toneDuration time.Duration
	toneSub      bool
	toneOut      string
)

func init() {
	rootCmd.AddCommand(newToneCmd())
}

func newToneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tone",
		Short: "Play a sine tone through a mixer instance",
		Long: `The tone command creates a main mixer instance, loads a one-cycle sine
waveform from the heap into voice 0 and keys it on. With --sub a sub-instance
plays a fifth above and is mixed into the main instance at half volume.

With --out the rendered output is written to a RIFF PCM file instead of
the sound card, as fast as the engine can render it.

Example:
  sasmux tone --freq 440 --duration 2s
  sasmux tone --sub --out fifth.wav`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runTone(ctx)
		},
	}
	cmd.Flags().Float64Var(&toneFreq, "freq", 440, "Tone frequency in Hz")
	cmd.Flags().DurationVar(&toneDuration, "duration", 2*time.Second, "How long to play")
	cmd.Flags().BoolVar(&toneSub, "sub", false, "Add a sub-instance a fifth above")
	cmd.Flags().StringVarP(&toneOut, "out", "o", "", "Write the output to a RIFF PCM file")
	return cmd
}

// tonePitch converts freq to the voice pitch that plays a toneTableLen cycle
// at that frequency.
func tonePitch(freq float64, rate int) (int, error) {
	pitch := int(math.Round(freq * toneTableLen * synth.PitchBase / float64(rate)))
	if pitch < synth.PitchMin || pitch > synth.PitchMax {
		lo := float64(synth.PitchMin) * float64(rate) / (toneTableLen * synth.PitchBase)
		hi := float64(synth.PitchMax) * float64(rate) / (toneTableLen * synth.PitchBase)
		return 0, fmt.Errorf("frequency %.1f Hz out of range %.1f-%.1f Hz", freq, lo, hi)
	}
	return pitch, nil
}

// sineTable writes one sine cycle into heap memory.
func sineTable(h *heap.Heap) ([]int16, heap.Ptr, error) {
	b, ptr, err := h.AllocBytes(toneTableLen*pcm.BytesPerSample, 64)
	if err != nil {
		return nil, ptr, err
	}
	table := pcm.Int16s(b)
	for i := range table {
		table[i] = int16(math.Round(math.Sin(2*math.Pi*float64(i)/toneTableLen) * 0.5 * math.MaxInt16))
	}
	return table, ptr, nil
}

// capture collects main-port grains once armed, until want frames are held.
type capture struct {
	armed atomic.Bool

	mu       sync.Mutex
	want     int
	channels int
	rate     int
	data     []int16
	finished bool
	done     chan struct{}
}

func newCapture(frames int) *capture {
	return &capture{want: frames, done: make(chan struct{})}
}

func (c *capture) sink(p output.PortParams, buf []int16) {
	if !c.armed.Load() || p.Class != output.PortMain {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.channels, c.rate = p.Format.Channels(), p.SampleRate
	n := min(len(buf), c.want*c.channels-len(c.data))
	c.data = append(c.data, buf[:n]...)
	if len(c.data) >= c.want*c.channels {
		c.finished = true
		close(c.done)
	}
}

func (c *capture) wave() container.Wave {
	c.mu.Lock()
	defer c.mu.Unlock()
	return container.Wave{
		Format:     container.FormatPCM,
		Channels:   c.channels,
		SampleRate: c.rate,
		Data:       pcm.Bytes(c.data),
	}
}

func runTone(ctx context.Context) (err error) {
	var (
		opts []audio.Option
		rec  *capture
	)
	if toneOut != "" {
		rec = newCapture(int(toneDuration.Seconds() * float64(cfg.SampleRate)))
		opts = append(opts, audio.WithOpener(output.NullOpener{Sink: rec.sink, Unpaced: true}))
	}

	if toneDuration <= 0 {
		return fmt.Errorf("duration %s must be positive", toneDuration)
	}
	pitch, err := tonePitch(toneFreq, cfg.SampleRate)
	if err != nil {
		return err
	}
	subPitch := 0
	if toneSub {
		if subPitch, err = tonePitch(toneFreq*1.5, cfg.SampleRate); err != nil {
			return fmt.Errorf("sub-instance: %w", err)
		}
	}

	actx, err := audio.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to open audio context: %w", err)
	}
	defer func() { err = multierr.Append(err, actx.Close()) }()

	table, ptr, err := sineTable(actx.Heap())
	if err != nil {
		return err
	}
	// The voices read the table until their instances are gone.
	var created []int
	defer func() {
		for i := len(created) - 1; i >= 0; i-- {
			err = multierr.Append(err, actx.DestroyInstance(created[i]))
		}
		err = multierr.Append(err, actx.Heap().Free(ptr))
	}()

	reg := actx.Registry()
	wave := synth.Waveform{Samples: table, Loop: true}
	voice := func(pitch int) error {
		return multierr.Combine(
			reg.SetWaveform(0, wave),
			reg.SetPitch(0, pitch),
			reg.SetVolume(0, synth.VolumeMax, synth.VolumeMax, 0, 0),
		)
	}

	parent, err := actx.CreateInstance(actx.InstanceConfig())
	if err != nil {
		return err
	}
	created = append(created, parent)
	if err := reg.PauseRender(); err != nil {
		return err
	}
	if err := voice(pitch); err != nil {
		return err
	}

	if toneSub {
		sub, err := actx.CreateInstance(actx.SubConfig(parent, synth.VolumeMax/2, synth.VolumeMax/2))
		if err != nil {
			return err
		}
		created = append(created, sub)
		if err := voice(subPitch); err != nil {
			return err
		}
		if err := reg.KeyOn(0); err != nil {
			return err
		}
		if err := reg.Select(parent); err != nil {
			return err
		}
	}
	if err := reg.KeyOn(0); err != nil {
		return err
	}

	if rec != nil {
		rec.armed.Store(true)
	}
	if err := reg.ResumeRender(); err != nil {
		return err
	}
	printInfo("Playing %.1f Hz", toneFreq)
	if toneSub {
		printInfo(" with a sub-instance at %.1f Hz", toneFreq*1.5)
	}
	printInfo("\n")

	if rec == nil {
		select {
		case <-time.After(toneDuration):
		case <-ctx.Done():
		}
		return reg.KeyOff(0)
	}

	select {
	case <-rec.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := os.WriteFile(toneOut, rec.wave().Encode(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", toneOut, err)
	}
	printInfo("Wrote %s (%s)\n", toneOut, toneDuration)
	return nil
}
