package ctrio

import "fmt"

// memSource is a Source backed by an in-memory byte slice. It exists so
// tests can exercise the parsers (such as the ExeFS directory reader)
// against synthetic images without touching the filesystem; a Reader
// itself always opens its path as a file.
type memSource struct {
	data []byte
}

var _ Source = (*memSource)(nil)

// NewMemSource wraps data as a Source. The returned Source does not copy
// data; callers must not mutate it afterwards.
func NewMemSource(data []byte) Source {
	return &memSource{data: data}
}

func (s *memSource) ReadExact(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > int64(len(s.data)) {
		return fmt.Errorf("ctrio: read of %d bytes at offset 0x%x out of range (size 0x%x)", len(p), off, len(s.data))
	}
	copy(p, s.data[off:off+int64(len(p))])
	return nil
}

func (s *memSource) Size() (int64, error) {
	return int64(len(s.data)), nil
}

func (s *memSource) Clone() (Source, error) {
	return &memSource{data: s.data}, nil
}

func (s *memSource) Close() error {
	return nil
}
