// Package physmem provides the physical memory services the heap and the codec
// memory manager build on: named regions with a memory attribute, and codec
// mappings that hide a region from the application while a codec owns it.
package physmem

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/mspace"
)

// PageSize is the allocation page of the Go-backed provider.
const PageSize = 4096

// codecVABase is where codec mapping addresses start.
const codecVABase uintptr = 0x8100_0000

// Attr selects the memory type of a region.
type Attr uint8

const (
	// AttrUserRW is ordinary cached read/write memory.
	AttrUserRW Attr = iota
	// AttrUncached is main memory with the cache disabled.
	AttrUncached
	// AttrPhysCont is physically contiguous non-cached memory.
	AttrPhysCont
)

func (a Attr) String() string {
	switch a {
	case AttrUserRW:
		return "user-rw"
	case AttrUncached:
		return "user-nc-rw"
	case AttrPhysCont:
		return "phycont-nc-rw"
	default:
		return fmt.Sprintf("attr(%d)", uint8(a))
	}
}

// Stats reports live provider resources.
type Stats struct {
	Regions  int
	Bytes    int
	Mappings int
	// Allocs and Frees count region operations over the provider lifetime.
	Allocs int
	Frees  int
}

// Provider allocates regions and codec mappings.
type Provider interface {
	Alloc(name string, size int, attr Attr) (*Region, error)
	Free(r *Region) error
	OpenUnmap(r *Region) (*Mapping, error)
	CloseUnmap(m *Mapping) error
	PageSize() int
	Stats() Stats
}

// Region is a page-aligned block of memory obtained from a Provider.
type Region struct {
	id   uint64
	name string
	attr Attr
	data []byte

	mapping *Mapping
	release func() error
}

// Name returns the name the region was allocated with.
func (r *Region) Name() string { return r.name }

// Attr returns the region's memory attribute.
func (r *Region) Attr() Attr { return r.attr }

// Size returns the region size in bytes.
func (r *Region) Size() int { return len(r.data) }

// Base returns the address of the first byte.
func (r *Region) Base() uintptr {
	if len(r.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.data[0]))
}

// Bytes returns the region memory, or nil while a codec mapping is open on it.
func (r *Region) Bytes() []byte {
	if r.mapping != nil {
		return nil
	}
	return r.data
}

// Mapped reports whether a codec mapping is open on the region.
func (r *Region) Mapped() bool { return r.mapping != nil }

// Mapping is the codec-visible view of a region. Codec addresses start at
// VA and carry no relation to the region's application address.
type Mapping struct {
	mu     sync.Mutex
	region *Region
	va     uintptr
	space  *mspace.Space
}

// VA returns the first codec address of the mapping.
func (m *Mapping) VA() uintptr { return m.va }

// Size returns the mapped size.
func (m *Mapping) Size() int { return len(m.region.data) }

// Region returns the underlying region.
func (m *Mapping) Region() *Region { return m.region }

// Alloc carves size bytes aligned to align out of the mapping.
func (m *Mapping) Alloc(size, align int) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	va, err := m.space.Memalign(align, size)
	if err != nil {
		return 0, errs.Wrap(errs.KindHardwareRejected, "physmem.Mapping.Alloc", errs.CodeCodecNoMemory, err)
	}
	return va, nil
}

// FreeVA returns an allocation made with Alloc.
func (m *Mapping) FreeVA(va uintptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.space.Free(va); err != nil {
		return errs.Wrap(errs.KindInvalidPointer, "physmem.Mapping.FreeVA", errs.CodeCodecInvalidValue, err)
	}
	return nil
}

// Slice returns n bytes of the region at codec address va, or nil when the
// range is outside the mapping.
func (m *Mapping) Slice(va uintptr, n int) []byte {
	if va < m.va || n < 0 {
		return nil
	}
	off := int(va - m.va)
	if off+n > len(m.region.data) {
		return nil
	}
	return m.region.data[off : off+n : off+n]
}

// Allocations returns the number of live codec allocations.
func (m *Mapping) Allocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.space.Len()
}

// registry is the accounting shared by every provider implementation.
type registry struct {
	mu      sync.Mutex
	nextID  uint64
	nextVA  uintptr
	regions map[uint64]*Region
	stats   Stats
}

func newRegistry() registry {
	return registry{
		nextVA:  codecVABase,
		regions: make(map[uint64]*Region),
	}
}

func (g *registry) add(r *Region) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	r.id = g.nextID
	g.regions[r.id] = r
	g.stats.Regions++
	g.stats.Bytes += len(r.data)
	g.stats.Allocs++
}

func (g *registry) remove(op string, r *Region) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r == nil || g.regions[r.id] != r {
		return errs.New(errs.KindInvalidHandle, op, errs.CodeMemoryRejected, "unknown region")
	}
	if r.mapping != nil {
		return errs.New(errs.KindHardwareRejected, op, errs.CodeMemoryRejected, "region %q is still mapped", r.name)
	}
	delete(g.regions, r.id)
	g.stats.Regions--
	g.stats.Bytes -= len(r.data)
	g.stats.Frees++
	return nil
}

func (g *registry) openUnmap(r *Region) (*Mapping, error) {
	const op = "physmem.OpenUnmap"

	g.mu.Lock()
	defer g.mu.Unlock()

	if r == nil || g.regions[r.id] != r {
		return nil, errs.New(errs.KindInvalidHandle, op, errs.CodeMemoryRejected, "unknown region")
	}
	if r.mapping != nil {
		return nil, errs.New(errs.KindHardwareRejected, op, errs.CodeMemoryRejected, "region %q already mapped", r.name)
	}

	m := &Mapping{region: r, va: g.nextVA}
	m.space = mspace.New(m.va, len(r.data))
	g.nextVA += uintptr(len(r.data)+PageSize-1) &^ (PageSize - 1)
	r.mapping = m
	g.stats.Mappings++
	return m, nil
}

func (g *registry) closeUnmap(m *Mapping) error {
	const op = "physmem.CloseUnmap"

	g.mu.Lock()
	defer g.mu.Unlock()

	if m == nil || m.region == nil || m.region.mapping != m {
		return errs.New(errs.KindInvalidHandle, op, errs.CodeMemoryRejected, "unknown mapping")
	}
	if n := m.Allocations(); n > 0 {
		return errs.New(errs.KindHardwareRejected, op, errs.CodeMemoryRejected, "mapping has %d live allocations", n)
	}
	m.region.mapping = nil
	g.stats.Mappings--
	return nil
}

func (g *registry) snapshot() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

func checkAlloc(op, name string, size int) error {
	if size <= 0 {
		return errs.New(errs.KindConfiguration, op, errs.CodeMemoryRejected, "region %q: size %d", name, size)
	}
	return nil
}

func roundPage(size, page int) int {
	return (size + page - 1) &^ (page - 1)
}
