//go:build !linux && !darwin

package physmem

// NewMmapProvider falls back to Go-managed memory where anonymous mmap is
// unavailable.
func NewMmapProvider() Provider {
	return NewGoProvider()
}
