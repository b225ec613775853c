// Package audio ties the heap, codec memory, output backend, mixer registry
// and decoders of one process into a single context object.
package audio

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/codec"
	"github.com/dewi-tim/sasmux/internal/codecmem"
	"github.com/dewi-tim/sasmux/internal/config"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/heap"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/mixer"
	"github.com/dewi-tim/sasmux/internal/output"
	"github.com/dewi-tim/sasmux/internal/physmem"
	"github.com/dewi-tim/sasmux/internal/storage"
	"github.com/dewi-tim/sasmux/internal/stream"
)

// Option customizes a Context.
type Option func(*Context)

// WithLogger sets the logger; components get named children of it.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) { c.log = l }
}

// WithProvider replaces the mmap memory provider.
func WithProvider(p physmem.Provider) Option {
	return func(c *Context) { c.provider = p }
}

// WithOpener replaces the output backend chosen by the config.
func WithOpener(o output.Opener) Option {
	return func(c *Context) { c.opener = o }
}

// WithStorage replaces the file-mapping storage.
func WithStorage(s storage.Storage) Option {
	return func(c *Context) { c.storage = s }
}

// WithCodecs replaces the software codec engine.
func WithCodecs(e codec.Engine) Option {
	return func(c *Context) { c.codecs = e }
}

// Context owns every shared audio resource of the process.
type Context struct {
	cfg config.Config
	log *zap.Logger

	provider physmem.Provider
	heap     *heap.Heap
	codecs   codec.Engine
	cmem     *codecmem.Manager
	storage  storage.Storage
	opener   output.Opener
	registry *mixer.Registry

	mu       sync.Mutex
	decoders map[*stream.Decoder]struct{}
	samples  map[*Sample]struct{}
	closed   bool
}

// New validates cfg and builds the context: memory provider, heap, codec
// engine and memory manager, storage, output backend, then the registry.
func New(cfg config.Config, opts ...Option) (_ *Context, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Context{
		cfg:      cfg,
		decoders: make(map[*stream.Decoder]struct{}),
		samples:  make(map[*Sample]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.Named("audio")
	}
	if c.provider == nil {
		c.provider = physmem.NewMmapProvider()
	}
	if c.codecs == nil {
		c.codecs = codec.NewSoftware()
	}
	if c.storage == nil {
		c.storage = storage.Mapped{}
	}
	if c.opener == nil {
		switch cfg.Backend {
		case config.BackendNull:
			c.opener = output.NullOpener{}
		default:
			if c.opener, err = output.NewOtoOpener(cfg.SampleRate); err != nil {
				return nil, err
			}
		}
	}

	var flags heap.Flags
	if cfg.HeapAutoExtend {
		flags |= heap.AutoExtend
	}
	c.heap, err = heap.New(cfg.HeapName, cfg.HeapSize, flags,
		heap.WithProvider(c.provider),
		heap.WithLogger(c.log.Named("heap")))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, c.heap.Destroy())
		}
	}()

	c.cmem = codecmem.NewManager(c.provider, codecmem.WithLogger(c.log.Named("codecmem")))

	c.registry, err = mixer.NewRegistry(c.heap, c.opener,
		mixer.WithCapacity(cfg.Capacity),
		mixer.WithLogger(c.log.Named("mixer")))
	if err != nil {
		return nil, err
	}

	c.log.Debug("audio context ready",
		zap.String("backend", cfg.Backend),
		zap.Int("rate", cfg.SampleRate),
		zap.String("heap", cfg.HeapName),
		zap.Int("heap_size", cfg.HeapSize),
		zap.Int("capacity", cfg.Capacity))
	return c, nil
}

// Config returns the settings the context was built with.
func (c *Context) Config() config.Config { return c.cfg }

// Heap returns the shared heap.
func (c *Context) Heap() *heap.Heap { return c.heap }

// Provider returns the physical memory provider.
func (c *Context) Provider() physmem.Provider { return c.provider }

// Registry returns the mixer instance registry.
func (c *Context) Registry() *mixer.Registry { return c.registry }

// Storage returns the file storage.
func (c *Context) Storage() storage.Storage { return c.storage }

// InstanceConfig returns a main-port, non-sub instance config filled from
// the context settings.
func (c *Context) InstanceConfig() mixer.Config {
	return mixer.Config{
		EngineConfig: c.cfg.EngineConfig,
		Port:         output.PortMain,
		SampleRate:   c.cfg.SampleRate,
		Grain:        c.cfg.Grain,
		Thread:       c.cfg.ThreadParams(),
		Parent:       mixer.None,
	}
}

// SubConfig returns a sub-instance config mixed into parent at the given
// volumes.
func (c *Context) SubConfig(parent, volL, volR int) mixer.Config {
	cfg := c.InstanceConfig()
	cfg.IsSub = true
	cfg.Parent = parent
	cfg.SubMixVolL = volL
	cfg.SubMixVolR = volR
	return cfg
}

// CreateInstance creates a mixer instance and selects it.
func (c *Context) CreateInstance(cfg mixer.Config) (int, error) {
	if err := c.checkOpen("audio.CreateInstance"); err != nil {
		return mixer.None, err
	}
	idx, err := c.registry.Create(cfg)
	if err != nil {
		return mixer.None, err
	}
	if err := c.registry.Select(idx); err != nil {
		return idx, err
	}
	return idx, nil
}

// DestroyInstance destroys the instance at idx.
func (c *Context) DestroyInstance(idx int) error {
	if err := c.checkOpen("audio.DestroyInstance"); err != nil {
		return err
	}
	return c.registry.Destroy(idx)
}

// OpenDecoder opens a streaming decoder on path using the context's codec
// engine, codec memory attribute and thread settings.
func (c *Context) OpenDecoder(path string) (*stream.Decoder, error) {
	return c.OpenDecoderWith(path, stream.Options{
		Memory: c.cfg.MemoryAttr(),
		Thread: c.cfg.ThreadParams(),
	})
}

// OpenDecoderWith is OpenDecoder with explicit options.
func (c *Context) OpenDecoderWith(path string, opts stream.Options) (*stream.Decoder, error) {
	const op = "audio.OpenDecoder"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errClosed(op)
	}

	d, err := stream.Open(stream.Deps{
		Heap:     c.heap,
		Storage:  c.storage,
		Codecs:   c.codecs,
		CodecMem: c.cmem,
		Opener:   c.opener,
		Logger:   c.log.Named("stream"),
	}, path, opts)
	if err != nil {
		return nil, err
	}
	c.decoders[d] = struct{}{}
	return d, nil
}

// CloseDecoder closes d and forgets it.
func (c *Context) CloseDecoder(d *stream.Decoder) error {
	c.mu.Lock()
	_, ok := c.decoders[d]
	delete(c.decoders, d)
	c.mu.Unlock()

	if !ok {
		return errs.New(errs.KindInvalidHandle, "audio.CloseDecoder", errs.CodeNotInitialized, "decoder not owned by this context")
	}
	return d.Close()
}

// Decoders returns the number of open decoders.
func (c *Context) Decoders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.decoders)
}

// Close tears down decoders, samples, the registry and the heap in that
// order. Every step runs; failures are combined.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	decoders := c.decoders
	samples := c.samples
	c.decoders = nil
	c.samples = nil
	c.mu.Unlock()

	var err error
	for d := range decoders {
		err = multierr.Append(err, d.Close())
	}
	for s := range samples {
		err = multierr.Append(err, s.free())
	}
	err = multierr.Append(err, c.registry.Close())
	err = multierr.Append(err, c.heap.Destroy())

	if err != nil {
		c.log.Warn("audio context closed with errors", zap.Error(err))
	} else {
		c.log.Debug("audio context closed")
	}
	return err
}

func (c *Context) checkOpen(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed(op)
	}
	return nil
}

func errClosed(op string) error {
	return errs.New(errs.KindInvalidHandle, op, errs.CodeNotInitialized, "audio context closed")
}
