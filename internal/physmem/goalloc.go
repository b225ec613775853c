package physmem

import "unsafe"

// GoProvider serves regions from the Go heap. Attributes are recorded but
// have no effect on the memory.
type GoProvider struct {
	reg registry
}

// NewGoProvider returns a provider backed by Go-managed memory.
func NewGoProvider() *GoProvider {
	return &GoProvider{reg: newRegistry()}
}

// Alloc returns a zeroed, page-aligned region of at least size bytes.
func (p *GoProvider) Alloc(name string, size int, attr Attr) (*Region, error) {
	if err := checkAlloc("physmem.Alloc", name, size); err != nil {
		return nil, err
	}
	size = roundPage(size, PageSize)

	buf := make([]byte, size+PageSize)
	base := uintptr(unsafe.Pointer(&buf[0]))
	off := int((base+PageSize-1)&^(PageSize-1) - base)

	r := &Region{name: name, attr: attr, data: buf[off : off+size : off+size]}
	p.reg.add(r)
	return r, nil
}

// Free releases a region. Mapped regions are rejected.
func (p *GoProvider) Free(r *Region) error {
	if err := p.reg.remove("physmem.Free", r); err != nil {
		return err
	}
	r.data = nil
	return nil
}

func (p *GoProvider) OpenUnmap(r *Region) (*Mapping, error) { return p.reg.openUnmap(r) }
func (p *GoProvider) CloseUnmap(m *Mapping) error          { return p.reg.closeUnmap(m) }
func (p *GoProvider) PageSize() int                         { return PageSize }
func (p *GoProvider) Stats() Stats                          { return p.reg.snapshot() }

var _ Provider = (*GoProvider)(nil)
