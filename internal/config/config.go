// Package config holds the runtime settings shared by the CLI and the audio
// context.
package config

import (
	"github.com/spf13/pflag"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/mixer"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/physmem"
	"github.com/dewi-tim/sasmux/internal/synth"
)

// Output backends.
const (
	BackendOto  = "oto"
	BackendNull = "null"
)

// Decoder memory attributes.
const (
	MemoryMain     = "main"
	MemoryPhyscont = "physcont"
)

// Config is the full set of runtime settings.
type Config struct {
	HeapName       string
	HeapSize       int
	HeapAutoExtend bool

	Capacity int

	Backend    string
	SampleRate int

	Grain        int
	EngineConfig string

	DecoderMemory string
	LockOSThread  bool

	LogLevel string
	LogDev   bool
}

// Default returns the stock settings: a 1 MiB auto-extending heap, eight
// instance slots, the host device at 48 kHz.
func Default() Config {
	return Config{
		HeapName:       "sasmux_heap",
		HeapSize:       1 << 20,
		HeapAutoExtend: true,
		Capacity:       mixer.DefaultCapacity,
		Backend:        BackendOto,
		SampleRate:     48000,
		Grain:          256,
		EngineConfig:   synth.DefaultConfig,
		DecoderMemory:  MemoryMain,
		LogLevel:       "warn",
	}
}

// BindFlags registers every setting on fs with c's current values as
// defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.HeapName, "heap-name", c.HeapName, "name of the segmented heap")
	fs.IntVar(&c.HeapSize, "heap-size", c.HeapSize, "primary heap block size in bytes")
	fs.BoolVar(&c.HeapAutoExtend, "heap-auto-extend", c.HeapAutoExtend, "grow the heap with extra blocks on exhaustion")
	fs.IntVar(&c.Capacity, "instances", c.Capacity, "mixer instance slots (1-64)")
	fs.StringVar(&c.Backend, "backend", c.Backend, "output backend: oto or null")
	fs.IntVar(&c.SampleRate, "rate", c.SampleRate, "output sample rate in Hz")
	fs.IntVar(&c.Grain, "grain", c.Grain, "instance grain in frames (multiple of 64, max 2048)")
	fs.StringVar(&c.EngineConfig, "engine-config", c.EngineConfig, "mixing engine configuration string")
	fs.StringVar(&c.DecoderMemory, "decoder-memory", c.DecoderMemory, "codec memory: main (uncached) or physcont")
	fs.BoolVar(&c.LockOSThread, "lock-os-thread", c.LockOSThread, "pin audio goroutines to OS threads")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&c.LogDev, "log-dev", c.LogDev, "human readable development logging")
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	const op = "config.Validate"
	bad := func(format string, args ...any) error {
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, format, args...)
	}
	switch {
	case c.HeapSize <= 0:
		return bad("heap size %d", c.HeapSize)
	case c.Capacity < 1 || c.Capacity > mixer.MaxCapacity:
		return bad("instance slots %d, want 1-%d", c.Capacity, mixer.MaxCapacity)
	case c.Backend != BackendOto && c.Backend != BackendNull:
		return bad("backend %q", c.Backend)
	case c.SampleRate <= 0:
		return bad("sample rate %d", c.SampleRate)
	case c.Grain <= 0 || c.Grain > output.GrainMax || c.Grain%output.GrainUnit != 0:
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidGrain, "grain %d", c.Grain)
	case c.DecoderMemory != MemoryMain && c.DecoderMemory != MemoryPhyscont:
		return bad("decoder memory %q", c.DecoderMemory)
	}
	if _, err := synth.ParseConfig(c.EngineConfig); err != nil {
		return err
	}
	return nil
}

// MemoryAttr maps DecoderMemory to a physmem attribute.
func (c Config) MemoryAttr() physmem.Attr {
	if c.DecoderMemory == MemoryPhyscont {
		return physmem.AttrPhysCont
	}
	return physmem.AttrUncached
}

// ThreadParams returns the scheduling parameters for audio goroutines.
func (c Config) ThreadParams() output.ThreadParams {
	return output.ThreadParams{LockOSThread: c.LockOSThread}
}
