package ncch

import (
	"encoding/binary"

	"github.com/go3ds/ncch/ctrio"
)

const (
	exefsHeaderSize = 0x200
	exefsMaxSlots   = 8
	exefsSlotSize   = 0x10
)

// exefsSlot is one ExeFs_SectionHeader entry: an 8-byte NUL-padded ASCII
// name plus a byte offset/size pair, relative to the end of the ExeFs
// header. A slot whose name is all-zero is empty.
type exefsSlot struct {
	Name   string
	Offset uint32
	Size   uint32
}

// exefsDirectory is the parsed ExeFs_Header: up to 8 named sections. Empty
// slots are omitted.
type exefsDirectory struct {
	Slots []exefsSlot
}

// readExeFSDirectory reads the fixed 0x200-byte ExeFs_Header at off.
func readExeFSDirectory(src ctrio.Source, off int64) (exefsDirectory, error) {
	buf := make([]byte, exefsHeaderSize)
	if err := src.ReadExact(buf, off); err != nil {
		return exefsDirectory{}, newError("read ExeFS header", KindError, err)
	}

	var dir exefsDirectory
	for i := 0; i < exefsMaxSlots; i++ {
		slotBuf := buf[i*exefsSlotSize : (i+1)*exefsSlotSize]
		name := trimASCII(slotBuf[:8])
		if name == "" {
			continue // empty slot: all-zero name
		}
		dir.Slots = append(dir.Slots, exefsSlot{
			Name:   name,
			Offset: binary.LittleEndian.Uint32(slotBuf[0x8:]),
			Size:   binary.LittleEndian.Uint32(slotBuf[0xc:]),
		})
	}
	return dir, nil
}

// find returns the first slot whose name equals name. When duplicate names
// occur, the lower-indexed slot wins, which falls out of linear scan order
// since readExeFSDirectory preserves slot order.
func (d exefsDirectory) find(name string) (exefsSlot, bool) {
	for _, slot := range d.Slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return exefsSlot{}, false
}
