package ncch

import (
	"fmt"

	"github.com/go3ds/ncch/ctrio"
)

// romfsIVFCSkip is the size of the IVFC header region preceding the RomFS
// level-3 payload.
const romfsIVFCSkip = 0x1000

// RomFS describes the byte range of the RomFS image embedded in an NCCH,
// plus an independent Source the caller can read from without perturbing
// the Reader's own state.
type RomFS struct {
	Source ctrio.Source
	Offset int64
	Size   int64
}

// locateRomFS reports KindNotUsed if the NCCH carries no RomFS; otherwise it
// computes the byte range (skipping the IVFC header) and clones an
// independent Source over the whole backing file, from which the caller
// reads that range.
func locateRomFS(src ctrio.Source, ncchOffset int64, ncch ncchHeader) (*RomFS, error) {
	if ncch.RomFSOffset == 0 || ncch.RomFSSize == 0 {
		return nil, newError("read RomFS", KindNotUsed, nil)
	}

	offset := ncchOffset + int64(ncch.RomFSOffset)*kBlockSize + romfsIVFCSkip
	size := int64(ncch.RomFSSize)*kBlockSize - romfsIVFCSkip
	if size <= 0 {
		return nil, newError("read RomFS", KindInvalidFormat,
			fmt.Errorf("RomFS size %d too small to hold the IVFC header", int64(ncch.RomFSSize)*kBlockSize))
	}

	fileSize, err := src.Size()
	if err != nil {
		return nil, newError("read RomFS", KindError, err)
	}
	if offset+size > fileSize {
		return nil, newError("read RomFS", KindInvalidFormat,
			fmt.Errorf("RomFS range [0x%x, 0x%x) exceeds file size 0x%x", offset, offset+size, fileSize))
	}

	clone, err := src.Clone()
	if err != nil {
		return nil, newError("read RomFS", KindError, err)
	}

	return &RomFS{Source: clone, Offset: offset, Size: size}, nil
}
