package ncch

import (
	"encoding/binary"
	"fmt"

	"github.com/go3ds/ncch/ctrio"
)

const exheaderSize = 0x800

// exheader holds the ExHeader_Header fields this reader cares about, per
// the codeset name, the `.code` compression flag, the code/
// stack/bss sizes the original logs at LOAD_DEBUG, and the ARM11 system
// local capabilities' program ID used for the encryption check.
type exheader struct {
	Name          string
	IsCompressed  bool
	EntryAddress  uint32
	CodeSize      uint32
	StackSize     uint32
	BSSSize       uint32
	CoreVersion   uint32
	Priority      uint8
	ResourceLimit uint8
	SystemMode    uint8
	ProgramID     uint64
}

// readExheader reads the 0x800-byte ExHeader at off, which immediately
// follows the NCCH header in the file.
func readExheader(src ctrio.Source, off int64) (exheader, error) {
	buf := make([]byte, exheaderSize)
	if err := src.ReadExact(buf, off); err != nil {
		return exheader{}, newError("read ExHeader", KindError, err)
	}

	var h exheader
	h.Name = trimASCII(buf[0x000:0x008])
	h.IsCompressed = buf[0x00d]&1 == 1
	h.EntryAddress = binary.LittleEndian.Uint32(buf[0x010:])
	h.CodeSize = binary.LittleEndian.Uint32(buf[0x018:])
	h.StackSize = binary.LittleEndian.Uint32(buf[0x01c:])
	h.BSSSize = binary.LittleEndian.Uint32(buf[0x03c:])
	h.CoreVersion = binary.LittleEndian.Uint32(buf[0x204:])
	h.Priority = buf[0x208]
	h.ResourceLimit = buf[0x209]
	h.SystemMode = buf[0x20e]
	h.ProgramID = binary.LittleEndian.Uint64(buf[0x200:])
	return h, nil
}

func trimASCII(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

// checkProgramID enforces that the ExHeader's program ID,
// masked to ignore the update-title bits, must equal the NCCH header's
// program ID. A mismatch means the image is encrypted; this reader does
// not decrypt it.
//
// Parenthesised deliberately: without the explicit grouping this reads as
// `a & (~mask != b)`, which is not the intended check.
func checkProgramID(exh exheader, ncch ncchHeader) error {
	if (exh.ProgramID &^ uint64(updateMask)) != ncch.ProgramID {
		return newError("check program ID", KindEncrypted,
			fmt.Errorf("ExHeader program ID %016X does not match NCCH program ID %016X outside the update mask",
				exh.ProgramID, ncch.ProgramID))
	}
	return nil
}
