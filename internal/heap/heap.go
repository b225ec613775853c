// Package heap implements the segmented heap: a growable allocator made of a
// circular list of memory blocks, each carved up by its own sub-allocator.
//
// The first block (the primary) lives for the heap's whole lifetime. With
// AutoExtend, a request no existing block can satisfy links a new block sized
// to fit it; a non-primary block is returned to the memory provider as soon
// as its last allocation is freed.
//
// Addresses handed out are real addresses inside provider regions. Bytes
// converts one back into a slice.
package heap

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/dewi-tim/sasmux/internal/errs"
	"github.com/dewi-tim/sasmux/internal/logging"
	"github.com/dewi-tim/sasmux/internal/mspace"
	"github.com/dewi-tim/sasmux/internal/physmem"
)

// Ptr is an address returned by the heap. The zero Ptr is null.
type Ptr uintptr

// Flags control heap behaviour.
type Flags uint32

const (
	// AutoExtend lets the heap link new blocks on demand.
	AutoExtend Flags = 1 << 0
)

const (
	// pageSize is the granularity blocks are rounded to.
	pageSize = 4096
	// blockHeaderSize is reserved at the start of every block for its link
	// record. Block usable space starts this far into the region.
	blockHeaderSize = 768
	// blockOverhead is the per-block bookkeeping cost used for auto-extend
	// sizing.
	blockOverhead = blockHeaderSize
	// MaxAlign is the largest supported alignment.
	MaxAlign = pageSize
	// nameMax is the longest stored heap name.
	nameMax = 31
)

// WordSize is the machine word size; alignments must be a multiple of it.
const WordSize = int(unsafe.Sizeof(uintptr(0)))

type block struct {
	region *physmem.Region
	space  *mspace.Space
	prev   *block
	next   *block
}

func (b *block) contains(p Ptr) bool {
	return b.space.Contains(uintptr(p))
}

// Stats is a snapshot of heap usage.
type Stats struct {
	Blocks      int
	Allocations int
	InUse       int
	Capacity    int
}

// Option configures a Heap.
type Option func(*Heap)

// WithProvider sets the memory provider blocks are allocated from.
func WithProvider(p physmem.Provider) Option {
	return func(h *Heap) { h.provider = p }
}

// WithLogger sets the heap logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Heap) { h.log = l }
}

// Heap is a segmented heap. It is safe for concurrent use.
type Heap struct {
	mu    sync.Mutex
	valid bool

	name      string
	blockSize int
	flags     Flags

	prim     *block
	provider physmem.Provider
	log      *zap.Logger
}

// New creates a heap whose primary block holds blockSize bytes rounded up to
// a page. With AutoExtend, extension blocks default to the same size.
func New(name string, blockSize int, flags Flags, opts ...Option) (*Heap, error) {
	const op = "heap.New"

	if blockSize <= 0 {
		return nil, errs.New(errs.KindConfiguration, op, errs.CodeHeapInvalidArg, "block size %d", blockSize)
	}
	if flags&^AutoExtend != 0 {
		return nil, errs.New(errs.KindConfiguration, op, errs.CodeHeapInvalidArg, "unknown flags 0x%x", uint32(flags&^AutoExtend))
	}
	if len(name) > nameMax {
		name = name[:nameMax]
	}

	h := &Heap{
		name:      name,
		blockSize: roundPage(blockSize),
		flags:     flags,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.provider == nil {
		h.provider = physmem.NewGoProvider()
	}
	if h.log == nil {
		h.log = logging.Named("heap")
	}

	prim, err := h.newBlock(h.blockSize)
	if err != nil {
		return nil, err
	}
	prim.next, prim.prev = prim, prim
	h.prim = prim
	h.valid = true

	h.log.Debug("heap created",
		zap.String("name", h.name),
		zap.Int("block_size", h.blockSize),
		zap.Bool("auto_extend", h.autoExtend()))
	return h, nil
}

// Name returns the heap name.
func (h *Heap) Name() string { return h.name }

// Alloc allocates n bytes at the default alignment.
func (h *Heap) Alloc(n int) (Ptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocLocked("heap.Alloc", n, 0)
}

// AllocAligned allocates n bytes aligned to align, which must be a power of
// two, a multiple of WordSize, and at most MaxAlign.
func (h *Heap) AllocAligned(n, align int) (Ptr, error) {
	if err := checkAlign("heap.AllocAligned", align); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocLocked("heap.AllocAligned", n, align)
}

// AllocBytes allocates n bytes (align 0 selects the default alignment) and
// returns them as a slice together with the address to free.
func (h *Heap) AllocBytes(n, align int) ([]byte, Ptr, error) {
	if align != 0 {
		if err := checkAlign("heap.AllocBytes", align); err != nil {
			return nil, 0, err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.allocLocked("heap.AllocBytes", n, align)
	if err != nil {
		return nil, 0, err
	}
	b, _ := h.bytesLocked(p, n)
	return b, p, nil
}

// Free returns p to its owning block. Freeing the null Ptr is a no-op.
func (h *Heap) Free(p Ptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freeLocked("heap.Free", p)
}

// Realloc resizes the allocation at p. A null p allocates; a zero size frees
// and returns the null Ptr.
func (h *Heap) Realloc(p Ptr, n int) (Ptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reallocLocked("heap.Realloc", p, n, 0)
}

// ReallocAligned is Realloc with an alignment constraint on the result.
func (h *Heap) ReallocAligned(p Ptr, n, align int) (Ptr, error) {
	if err := checkAlign("heap.ReallocAligned", align); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reallocLocked("heap.ReallocAligned", p, n, align)
}

// UsableSize returns the usable size of the allocation at p.
func (h *Heap) UsableSize(p Ptr) (int, error) {
	const op = "heap.UsableSize"

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkValid(op); err != nil {
		return 0, err
	}
	b := h.findLocked(p)
	if b == nil {
		return 0, invalidPointer(op, p)
	}
	size, ok := b.space.UsableSize(uintptr(p))
	if !ok {
		return 0, invalidPointer(op, p)
	}
	return size, nil
}

// Bytes returns n bytes at p. The range must lie inside one allocation.
func (h *Heap) Bytes(p Ptr, n int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkValid("heap.Bytes"); err != nil {
		return nil, err
	}
	return h.bytesLocked(p, n)
}

// Stats returns a usage snapshot.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	var st Stats
	if !h.valid {
		return st
	}
	h.eachLocked(func(b *block) {
		st.Blocks++
		st.Allocations += b.space.Len()
		st.InUse += b.space.InUse()
		st.Capacity += b.space.Size()
	})
	return st
}

// Destroy invalidates the heap and returns every block to the provider.
// Later calls fail with an invalid-handle error.
func (h *Heap) Destroy() error {
	const op = "heap.Destroy"

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkValid(op); err != nil {
		return err
	}
	h.valid = false

	var firstErr error
	n := 0
	for b := h.prim.next; ; {
		next := b.next
		if err := h.provider.Free(b.region); err != nil && firstErr == nil {
			firstErr = err
		}
		n++
		if b == h.prim {
			break
		}
		b = next
	}
	h.prim = nil

	h.log.Debug("heap destroyed", zap.String("name", h.name), zap.Int("blocks", n))
	return firstErr
}

func (h *Heap) allocLocked(op string, n, align int) (Ptr, error) {
	if err := h.checkValid(op); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errs.New(errs.KindConfiguration, op, errs.CodeHeapInvalidArg, "negative size %d", n)
	}

	for b := h.prim.next; ; b = b.next {
		if p, ok := b.alloc(n, align); ok {
			return p, nil
		}
		if b == h.prim {
			break
		}
	}

	if !h.autoExtend() {
		return 0, errs.New(errs.KindResourceExhausted, op, errs.CodeHeapNoMemory, "%d bytes", n)
	}

	b, err := h.newBlock(h.extensionSize(n, align))
	if err != nil {
		return 0, err
	}
	h.linkLocked(b)

	p, ok := b.alloc(n, align)
	if !ok {
		return 0, errs.New(errs.KindResourceExhausted, op, errs.CodeHeapNoMemory, "%d bytes after extension", n)
	}
	return p, nil
}

func (h *Heap) freeLocked(op string, p Ptr) error {
	if err := h.checkValid(op); err != nil {
		return err
	}
	if p == 0 {
		return nil
	}

	b := h.findLocked(p)
	if b == nil {
		return invalidPointer(op, p)
	}
	if err := b.space.Free(uintptr(p)); err != nil {
		return invalidPointer(op, p)
	}
	if b != h.prim && b.space.IsEmpty() {
		h.unlinkLocked(b)
		if err := h.provider.Free(b.region); err != nil {
			return err
		}
	}
	return nil
}

func (h *Heap) reallocLocked(op string, p Ptr, n, align int) (Ptr, error) {
	if p == 0 {
		return h.allocLocked(op, n, align)
	}
	if n == 0 {
		return 0, h.freeLocked(op, p)
	}
	if err := h.checkValid(op); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errs.New(errs.KindConfiguration, op, errs.CodeHeapInvalidArg, "negative size %d", n)
	}

	b := h.findLocked(p)
	if b == nil {
		return 0, invalidPointer(op, p)
	}
	old, ok := b.space.UsableSize(uintptr(p))
	if !ok {
		return 0, invalidPointer(op, p)
	}

	var err error
	if align == 0 {
		err = b.space.Realloc(uintptr(p), n)
	} else {
		err = b.space.ReallocAlign(uintptr(p), n, align)
	}
	if err == nil {
		return p, nil
	}

	np, err := h.allocLocked(op, n, align)
	if err != nil {
		return 0, err
	}
	src, _ := h.bytesLocked(p, old)
	dst, _ := h.bytesLocked(np, min(old, n))
	copy(dst, src)

	if err := h.freeLocked(op, p); err != nil {
		return 0, err
	}
	return np, nil
}

func (h *Heap) bytesLocked(p Ptr, n int) ([]byte, error) {
	const op = "heap.Bytes"

	b := h.findLocked(p)
	if b == nil || n < 0 {
		return nil, invalidPointer(op, p)
	}
	size, ok := b.space.UsableSize(uintptr(p))
	if !ok || n > size {
		return nil, errs.New(errs.KindInvalidPointer, op, errs.CodeHeapInvalidPointer, "%d bytes at %#x exceeds allocation", n, uintptr(p))
	}
	off := int(uintptr(p) - b.region.Base())
	return b.region.Bytes()[off : off+n : off+n], nil
}

// findLocked returns the block containing p, searching the most recently
// linked block first.
func (h *Heap) findLocked(p Ptr) *block {
	for b := h.prim.next; ; b = b.next {
		if b.contains(p) {
			return b
		}
		if b == h.prim {
			return nil
		}
	}
}

func (h *Heap) eachLocked(fn func(*block)) {
	for b := h.prim.next; ; b = b.next {
		fn(b)
		if b == h.prim {
			return
		}
	}
}

// linkLocked inserts b right after the primary block.
func (h *Heap) linkLocked(b *block) {
	b.next = h.prim.next
	b.prev = h.prim
	h.prim.next.prev = b
	h.prim.next = b

	h.log.Debug("block linked", zap.String("name", h.name), zap.Int("size", b.region.Size()))
}

func (h *Heap) unlinkLocked(b *block) {
	b.prev.next = b.next
	b.next.prev = b.prev
	b.next, b.prev = nil, nil

	h.log.Debug("block released", zap.String("name", h.name), zap.Int("size", b.region.Size()))
}

func (h *Heap) newBlock(size int) (*block, error) {
	r, err := h.provider.Alloc(h.name, size, physmem.AttrUserRW)
	if err != nil {
		return nil, errs.Wrap(errs.KindResourceExhausted, "heap.newBlock", errs.CodeHeapNoMemory, err)
	}
	return &block{
		region: r,
		space:  mspace.New(r.Base()+blockHeaderSize, r.Size()-blockHeaderSize),
	}, nil
}

// extensionSize returns the size of a block guaranteed to satisfy a request
// of n bytes at align.
func (h *Heap) extensionSize(n, align int) int {
	size := h.blockSize
	n8 := roundUp(max(n, 1), mspace.Granule)

	if align != 0 {
		extra := 0
		if rem := blockHeaderSize & (align - 1); rem != 0 {
			extra = align - rem
		}
		if n8+extra > size-blockOverhead {
			size = roundPage(n8 + extra + blockOverhead)
		}
	} else if n8 > size-blockOverhead {
		size = roundPage(n8 + blockOverhead)
	}
	return size
}

func (h *Heap) autoExtend() bool { return h.flags&AutoExtend != 0 }

func (h *Heap) checkValid(op string) error {
	if !h.valid {
		return errs.New(errs.KindInvalidHandle, op, errs.CodeHeapInvalidID, "heap %q destroyed", h.name)
	}
	return nil
}

func (b *block) alloc(n, align int) (Ptr, bool) {
	var (
		p   uintptr
		err error
	)
	if align == 0 {
		p, err = b.space.Malloc(n)
	} else {
		p, err = b.space.Memalign(align, n)
	}
	return Ptr(p), err == nil
}

func checkAlign(op string, align int) error {
	if align <= 0 || align > MaxAlign || align%WordSize != 0 || align&(align-1) != 0 {
		return errs.New(errs.KindConfiguration, op, errs.CodeHeapInvalidArg, "alignment %d", align)
	}
	return nil
}

func invalidPointer(op string, p Ptr) error {
	return errs.New(errs.KindInvalidPointer, op, errs.CodeHeapInvalidPointer, "%#x", uintptr(p))
}

func roundPage(n int) int { return roundUp(n, pageSize) }

func roundUp(n, a int) int { return (n + a - 1) &^ (a - 1) }

// String implements fmt.Stringer for log output.
func (p Ptr) String() string { return fmt.Sprintf("%#x", uintptr(p)) }
