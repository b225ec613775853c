//go:build !linux && !darwin

package storage

// Mapped falls back to plain reads where file mapping is unavailable.
type Mapped struct {
	OS
}

var _ Storage = Mapped{}
