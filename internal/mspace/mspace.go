// Package mspace implements the sub-allocator that carves allocations out of
// one contiguous address range.
//
// A Space never touches the memory it manages: bookkeeping lives in Go
// structures, so the range may be a heap block, a codec mapping, or any other
// address window. Free space is an address-ordered list of extents; adjacent
// extents are always coalesced, so two free extents never touch.
//
// A Space is not safe for concurrent use. Owners serialize access.
package mspace

import (
	"errors"
	"sort"
)

// Granule is the allocation granularity and the default alignment.
const Granule = 8

var (
	// ErrNoSpace means no free extent can hold the request.
	ErrNoSpace = errors.New("mspace: out of space")
	// ErrNotOwned means the address was not returned by this space.
	ErrNotOwned = errors.New("mspace: address not owned")
	// ErrBadAlign means the alignment is not a power of two multiple of Granule.
	ErrBadAlign = errors.New("mspace: invalid alignment")
)

type extent struct {
	addr uintptr
	size uintptr
}

// Space manages [Base, Base+Size).
type Space struct {
	base uintptr
	size uintptr

	free  []extent           // sorted by addr, never adjacent
	used  map[uintptr]uintptr // allocation start -> size
	inUse uintptr
}

// New creates a space over size bytes starting at base. The range is trimmed
// inward to Granule boundaries.
func New(base uintptr, size int) *Space {
	start := alignUp(base, Granule)
	end := (base + uintptr(max(size, 0))) &^ (Granule - 1)
	s := &Space{
		base: start,
		used: make(map[uintptr]uintptr),
	}
	if end > start {
		s.size = end - start
		s.free = []extent{{addr: start, size: s.size}}
	}
	return s
}

// Base returns the first managed address.
func (s *Space) Base() uintptr { return s.base }

// Size returns the number of managed bytes.
func (s *Space) Size() int { return int(s.size) }

// Contains reports whether p falls inside the managed range.
func (s *Space) Contains(p uintptr) bool {
	return p >= s.base && p < s.base+s.size
}

// IsEmpty reports whether nothing is allocated.
func (s *Space) IsEmpty() bool { return len(s.used) == 0 }

// Len returns the number of live allocations.
func (s *Space) Len() int { return len(s.used) }

// InUse returns the number of allocated bytes, rounded to Granule.
func (s *Space) InUse() int { return int(s.inUse) }

// Available returns the number of free bytes.
func (s *Space) Available() int { return int(s.size - s.inUse) }

// Largest returns the size of the largest free extent.
func (s *Space) Largest() int {
	var m uintptr
	for _, e := range s.free {
		m = max(m, e.size)
	}
	return int(m)
}

// Malloc allocates n bytes at Granule alignment.
func (s *Space) Malloc(n int) (uintptr, error) {
	return s.Memalign(Granule, n)
}

// Memalign allocates n bytes aligned to align. A zero-byte request still
// returns a distinct address.
func (s *Space) Memalign(align, n int) (uintptr, error) {
	if !validAlign(align) {
		return 0, ErrBadAlign
	}
	want := roundSize(n)
	a := uintptr(align)

	for i, e := range s.free {
		start := alignUp(e.addr, a)
		pad := start - e.addr
		if pad+want > e.size {
			continue
		}
		tail := e.size - pad - want

		var repl []extent
		if pad > 0 {
			repl = append(repl, extent{addr: e.addr, size: pad})
		}
		if tail > 0 {
			repl = append(repl, extent{addr: start + want, size: tail})
		}
		s.free = append(s.free[:i], append(repl, s.free[i+1:]...)...)

		s.used[start] = want
		s.inUse += want
		return start, nil
	}
	return 0, ErrNoSpace
}

// Free returns the allocation starting at p.
func (s *Space) Free(p uintptr) error {
	size, ok := s.used[p]
	if !ok {
		return ErrNotOwned
	}
	delete(s.used, p)
	s.inUse -= size
	s.release(p, size)
	return nil
}

// UsableSize returns the usable size of the allocation at p.
func (s *Space) UsableSize(p uintptr) (int, bool) {
	size, ok := s.used[p]
	return int(size), ok
}

// Realloc resizes the allocation at p without moving it. Shrinking always
// succeeds; growing succeeds only when the extent right after p is free and
// large enough. On ErrNoSpace the allocation is unchanged.
func (s *Space) Realloc(p uintptr, n int) error {
	size, ok := s.used[p]
	if !ok {
		return ErrNotOwned
	}
	want := roundSize(n)

	switch {
	case want == size:
		return nil
	case want < size:
		s.used[p] = want
		s.inUse -= size - want
		s.release(p+want, size-want)
		return nil
	}

	need := want - size
	i := s.search(p + size)
	if i >= len(s.free) || s.free[i].addr != p+size || s.free[i].size < need {
		return ErrNoSpace
	}
	if s.free[i].size == need {
		s.free = append(s.free[:i], s.free[i+1:]...)
	} else {
		s.free[i].addr += need
		s.free[i].size -= need
	}
	s.used[p] = want
	s.inUse += need
	return nil
}

// ReallocAlign is Realloc for an allocation that must stay aligned to align.
func (s *Space) ReallocAlign(p uintptr, n, align int) error {
	if !validAlign(align) {
		return ErrBadAlign
	}
	if p%uintptr(align) != 0 {
		return ErrNoSpace
	}
	return s.Realloc(p, n)
}

// release inserts [addr, addr+size) into the free list, merging neighbours.
func (s *Space) release(addr, size uintptr) {
	i := s.search(addr)

	if i > 0 && s.free[i-1].addr+s.free[i-1].size == addr {
		s.free[i-1].size += size
		if i < len(s.free) && s.free[i-1].addr+s.free[i-1].size == s.free[i].addr {
			s.free[i-1].size += s.free[i].size
			s.free = append(s.free[:i], s.free[i+1:]...)
		}
		return
	}
	if i < len(s.free) && addr+size == s.free[i].addr {
		s.free[i].addr = addr
		s.free[i].size += size
		return
	}

	s.free = append(s.free, extent{})
	copy(s.free[i+1:], s.free[i:])
	s.free[i] = extent{addr: addr, size: size}
}

// search returns the index of the first free extent at or after addr.
func (s *Space) search(addr uintptr) int {
	return sort.Search(len(s.free), func(i int) bool {
		return s.free[i].addr >= addr
	})
}

func validAlign(align int) bool {
	return align >= Granule && align&(align-1) == 0
}

func roundSize(n int) uintptr {
	if n <= 0 {
		return Granule
	}
	return alignUp(uintptr(n), Granule)
}

func alignUp(v, a uintptr) uintptr {
	return (v + a - 1) &^ (a - 1)
}
