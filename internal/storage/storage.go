// Package storage provides the file access the decoder and sample loader use:
// a size query and a whole-file read into a caller-owned buffer.
package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dewi-tim/sasmux/internal/errs"
)

// Storage reads whole files.
type Storage interface {
	// Size returns the file size in bytes.
	Size(name string) (int64, error)
	// ReadFile reads the file into dst, which must be at least Size bytes.
	ReadFile(name string, dst []byte) (int, error)
}

// OS reads from the host file system. Relative names resolve against Root.
type OS struct {
	Root string
}

func (s OS) path(name string) string {
	if s.Root == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Root, name)
}

// Size opens the file and seeks to its end.
func (s OS) Size(name string) (int64, error) {
	const op = "storage.Size"

	f, err := os.Open(s.path(name))
	if err != nil {
		return 0, ioError(op, err)
	}
	defer f.Close()

	n, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, ioError(op, err)
	}
	return n, nil
}

// ReadFile reads name into dst.
func (s OS) ReadFile(name string, dst []byte) (int, error) {
	const op = "storage.ReadFile"

	f, err := os.Open(s.path(name))
	if err != nil {
		return 0, ioError(op, err)
	}
	defer f.Close()

	return readAll(op, f, dst)
}

// FS reads from an fs.FS.
type FS struct {
	FS fs.FS
}

// Size implements Storage.
func (s FS) Size(name string) (int64, error) {
	st, err := fs.Stat(s.FS, name)
	if err != nil {
		return 0, ioError("storage.Size", err)
	}
	return st.Size(), nil
}

// ReadFile implements Storage.
func (s FS) ReadFile(name string, dst []byte) (int, error) {
	const op = "storage.ReadFile"

	f, err := s.FS.Open(name)
	if err != nil {
		return 0, ioError(op, err)
	}
	defer f.Close()

	return readAll(op, f, dst)
}

// readAll fills dst up to the end of r.
func readAll(op string, r io.Reader, dst []byte) (int, error) {
	n, err := io.ReadFull(r, dst)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return n, nil
	}
	if err != nil {
		return n, ioError(op, err)
	}
	return n, nil
}

func ioError(op string, err error) error {
	return errs.Wrap(errs.KindIO, op, errs.CodeIOFailure, err)
}

var (
	_ Storage = OS{}
	_ Storage = FS{}
)
