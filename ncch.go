package ncch

import (
	"encoding/binary"
	"fmt"

	"github.com/go3ds/ncch/ctrio"
)

const (
	kBlockSize  = 0x200
	ncsdOffset  = 0x4000
	updateMask  = 0x0000_000e_0000_0000
	ncchHdrSize = 0x200
)

// ncchHeader holds the NCCH_Header fields this reader cares about, per
// this reader cares about. The signature and the per-region hashes are
// opaque to the core and are not retained.
type ncchHeader struct {
	ProgramID   uint64
	Version     uint16
	ExeFSOffset uint32 // in 0x200-byte blocks
	ExeFSSize   uint32 // in 0x200-byte blocks
	RomFSOffset uint32 // in 0x200-byte blocks
	RomFSSize   uint32 // in 0x200-byte blocks
}

// readNCCHHeader reads the 0x200-byte NCCH_Header at off, returning the
// parsed header. It neither checks the magic nor dispatches NCSD: callers
// decide the base offset and check the magic beforehand (see
// detectBaseOffset and validateNCCHMagic).
func readNCCHHeader(src ctrio.Source, off int64) (ncchHeader, error) {
	buf := make([]byte, ncchHdrSize)
	if err := src.ReadExact(buf, off); err != nil {
		return ncchHeader{}, newError("read NCCH header", KindError, err)
	}

	var hdr ncchHeader
	hdr.ProgramID = binary.LittleEndian.Uint64(buf[0x118:])
	hdr.Version = binary.LittleEndian.Uint16(buf[0x112:])
	hdr.ExeFSOffset = binary.LittleEndian.Uint32(buf[0x1a0:])
	hdr.ExeFSSize = binary.LittleEndian.Uint32(buf[0x1a4:])
	hdr.RomFSOffset = binary.LittleEndian.Uint32(buf[0x1b0:])
	hdr.RomFSSize = binary.LittleEndian.Uint32(buf[0x1b4:])
	return hdr, nil
}

func magicAt(buf []byte, off int) string {
	return string(buf[off : off+4])
}

// detectBaseOffset reads the header at offset 0, recognises NCSD vs NCCH,
// and returns the byte offset of the active (bootable, first-partition)
// NCCH within the file.
func detectBaseOffset(src ctrio.Source) (int64, error) {
	buf := make([]byte, ncchHdrSize)
	if err := src.ReadExact(buf, 0); err != nil {
		return 0, newError("detect container", KindError, err)
	}

	switch magicAt(buf, 0x100) {
	case "NCSD":
		return ncsdOffset, nil
	case "NCCH":
		return 0, nil
	default:
		return 0, newError("detect container", KindInvalidFormat,
			fmt.Errorf("unrecognised magic %q", magicAt(buf, 0x100)))
	}
}

// validateNCCHMagic re-reads the header at ncchOffset and fails unless it is
// an NCCH. Used after detectBaseOffset has jumped past an NCSD wrapper.
func validateNCCHMagic(src ctrio.Source, ncchOffset int64) error {
	buf := make([]byte, 4)
	if err := src.ReadExact(buf, ncchOffset+0x100); err != nil {
		return newError("validate NCCH magic", KindError, err)
	}
	if string(buf) != "NCCH" {
		return newError("validate NCCH magic", KindInvalidFormat,
			fmt.Errorf("expected NCCH magic, got %q", string(buf)))
	}
	return nil
}
