//go:build linux || darwin

package physmem

import (
	"golang.org/x/sys/unix"

	"github.com/dewi-tim/sasmux/internal/errs"
)

// MmapProvider serves regions from anonymous private mappings. Uncached and
// physically contiguous regions are pre-faulted where the platform allows it,
// so the first codec access never takes a page fault.
type MmapProvider struct {
	reg  registry
	page int
}

// NewMmapProvider returns a provider backed by anonymous mmap.
func NewMmapProvider() Provider {
	return &MmapProvider{reg: newRegistry(), page: unix.Getpagesize()}
}

// Alloc maps a zeroed region of at least size bytes.
func (p *MmapProvider) Alloc(name string, size int, attr Attr) (*Region, error) {
	const op = "physmem.Alloc"
	if err := checkAlloc(op, name, size); err != nil {
		return nil, err
	}
	size = roundPage(size, max(p.page, PageSize))

	flags := unix.MAP_ANON | unix.MAP_PRIVATE
	if attr != AttrUserRW {
		flags |= mapPopulate
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, errs.Wrap(errs.KindHardwareRejected, op, errs.CodeMemoryRejected, err)
	}

	r := &Region{name: name, attr: attr, data: data}
	r.release = func() error { return unix.Munmap(data) }
	p.reg.add(r)
	return r, nil
}

// Free unmaps a region. Mapped regions are rejected.
func (p *MmapProvider) Free(r *Region) error {
	const op = "physmem.Free"
	if err := p.reg.remove(op, r); err != nil {
		return err
	}
	release := r.release
	r.data, r.release = nil, nil
	if err := release(); err != nil {
		return errs.Wrap(errs.KindHardwareRejected, op, errs.CodeMemoryRejected, err)
	}
	return nil
}

func (p *MmapProvider) OpenUnmap(r *Region) (*Mapping, error) { return p.reg.openUnmap(r) }
func (p *MmapProvider) CloseUnmap(m *Mapping) error          { return p.reg.closeUnmap(m) }
func (p *MmapProvider) PageSize() int                         { return p.page }
func (p *MmapProvider) Stats() Stats                          { return p.reg.snapshot() }
