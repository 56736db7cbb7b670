// Package ctrio provides the random-access byte source the NCCH reader is
// bound to: a thin wrapper over *os.File exposing exact-length reads at an
// absolute offset, plus the ability to clone an independent cursor over the
// same path so a caller can consume a sub-range (such as RomFS) without
// perturbing the reader's own state.
package ctrio

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Source is the byte source a Reader is bound to.
type Source interface {
	// ReadExact reads exactly len(p) bytes starting at off, or returns an
	// error. It never returns a short read without an error.
	ReadExact(p []byte, off int64) error

	// Size returns the total length of the underlying data.
	Size() (int64, error)

	// Clone opens an independent Source over the same underlying data. The
	// returned Source has its own file handle and is safe to use
	// concurrently with the original.
	Clone() (Source, error)

	// Close releases any resources held by the Source.
	Close() error
}

type fileSource struct {
	path string
	file *os.File
}

var _ Source = (*fileSource)(nil)

// Open opens path for random-access reading.
func Open(path string) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ctrio: failed to open %q: %w", path, err)
	}
	return &fileSource{path: path, file: file}, nil
}

func (s *fileSource) ReadExact(p []byte, off int64) error {
	n, err := s.file.ReadAt(p, off)
	if err != nil {
		if errors.Is(err, io.EOF) && n == len(p) {
			return nil
		}
		return fmt.Errorf("ctrio: failed to read %d bytes at offset 0x%x: %w", len(p), off, err)
	}
	return nil
}

func (s *fileSource) Size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("ctrio: failed to stat %q: %w", s.path, err)
	}
	return info.Size(), nil
}

func (s *fileSource) Clone() (Source, error) {
	return Open(s.path)
}

func (s *fileSource) Close() error {
	return s.file.Close()
}
