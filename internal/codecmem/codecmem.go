// Package codecmem manages codec context memory: a dedicated region per
// decoder, remapped so only the codec can see it, with the context carved out
// of the remapped range.
package codecmem

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/codec"
	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/physmem"
)

// DefaultGranularity is the size regions are rounded up to.
const DefaultGranularity = 1 << 20

const regionName = "sasmux_codec_engine"

// Block is the codec memory of one decoder.
type Block struct {
	region  *physmem.Region
	mapping *physmem.Mapping
	va      uintptr
	size    int
	mem     []byte
}

// Bytes returns the context memory as seen by the codec.
func (b *Block) Bytes() []byte { return b.mem }

// VA returns the codec address of the context.
func (b *Block) VA() uintptr { return b.va }

// ContextSize returns the size the engine asked for.
func (b *Block) ContextSize() int { return b.size }

// RegionSize returns the size of the backing region.
func (b *Block) RegionSize() int { return b.region.Size() }

var _ codec.Memory = (*Block)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithGranularity overrides the region size granularity.
func WithGranularity(n int) Option {
	return func(m *Manager) { m.granularity = n }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager allocates codec memory blocks from a physical memory provider.
type Manager struct {
	provider    physmem.Provider
	granularity int
	log         *zap.Logger
}

// NewManager returns a manager over provider.
func NewManager(provider physmem.Provider, opts ...Option) *Manager {
	m := &Manager{provider: provider, granularity: DefaultGranularity}
	for _, opt := range opts {
		opt(m)
	}
	if m.granularity <= 0 || m.granularity&(m.granularity-1) != 0 {
		m.granularity = DefaultGranularity
	}
	if m.log == nil {
		m.log = logging.Named("codecmem")
	}
	return m
}

// Allocate reserves context memory for a decoder described by info. On
// failure every completed step is undone in reverse order.
func (m *Manager) Allocate(engine codec.Engine, info codec.Info, attr physmem.Attr) (_ *Block, err error) {
	const op = "codecmem.Allocate"

	size, err := engine.ContextSize(info)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeCodecInvalidValue, "context size %d for %s", size, info.Kind)
	}

	regionSize := (size + m.granularity - 1) &^ (m.granularity - 1)
	region, err := m.provider.Alloc(regionName, regionSize, attr)
	if err != nil {
		return nil, errs.Wrap(errs.KindHardwareRejected, op, errs.CodeMemoryRejected, err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, m.provider.Free(region))
		}
	}()

	mapping, err := m.provider.OpenUnmap(region)
	if err != nil {
		return nil, errs.Wrap(errs.KindHardwareRejected, op, errs.CodeMemoryRejected, err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, m.provider.CloseUnmap(mapping))
		}
	}()

	va, err := mapping.Alloc(size, codec.Alignment)
	if err != nil {
		return nil, err
	}

	b := &Block{
		region:  region,
		mapping: mapping,
		va:      va,
		size:    size,
		mem:     mapping.Slice(va, size),
	}
	m.log.Debug("codec memory allocated",
		zap.Stringer("kind", info.Kind),
		zap.Stringer("attr", attr),
		zap.Int("context_size", size),
		zap.Int("region_size", region.Size()))
	return b, nil
}

// Free releases a block: context, mapping, then region. Every step runs even
// when an earlier one fails.
func (m *Manager) Free(b *Block) error {
	if b == nil || b.region == nil {
		return errs.New(errs.KindInvalidHandle, "codecmem.Free", errs.CodeMemoryRejected, "block already freed")
	}

	err := b.mapping.FreeVA(b.va)
	err = multierr.Append(err, m.provider.CloseUnmap(b.mapping))
	err = multierr.Append(err, m.provider.Free(b.region))

	b.region, b.mapping, b.mem = nil, nil, nil
	if err != nil {
		m.log.Warn("codec memory release incomplete", zap.Error(err))
	}
	return err
}
