package ncch

import (
	"encoding/binary"
	"fmt"
)

// maxDecompressedSize is a sanity ceiling on the declared LZSS output size.
// The last 4 bytes of the footer are attacker-controlled; without a ceiling
// an 8-byte compressed blob could declare a multi-gigabyte output and drive
// an unbounded allocation before a single byte is validated.
const maxDecompressedSize = 256 << 20 // 256 MiB

// lzssDecompressedSize computes the decompressed size of a `.code` LZSS
// blob: the last 4 bytes of compressed hold the amount by
// which the output exceeds the input.
func lzssDecompressedSize(compressed []byte) (uint32, error) {
	if len(compressed) < 8 {
		return 0, newError("lzss size", KindInvalidFormat,
			fmt.Errorf("compressed blob too short for a footer: %d bytes", len(compressed)))
	}
	additional := binary.LittleEndian.Uint32(compressed[len(compressed)-4:])
	size := additional + uint32(len(compressed))
	if size < uint32(len(compressed)) {
		return 0, newError("lzss size", KindInvalidFormat, fmt.Errorf("decompressed size overflows"))
	}
	return size, nil
}

// lzssDecompress implements the back-to-front LZSS variant used for the
// ExeFS `.code` section. It walks both the input and the output buffers
// from high indices to low, driven by control bytes whose bits (MSB first)
// select between a literal copy and a back-reference.
//
// Every index derivation is bounds-checked before dereference: this is the
// one place in the reader where a single missed check turns into an
// out-of-bounds read or write, since compressed is entirely
// attacker-controlled.
func lzssDecompress(compressed []byte) ([]byte, error) {
	decompressedSize, err := lzssDecompressedSize(compressed)
	if err != nil {
		return nil, err
	}
	if decompressedSize > maxDecompressedSize {
		return nil, newError("lzss decompress", KindMemoryAllocationFailed,
			fmt.Errorf("declared decompressed size 0x%x exceeds ceiling 0x%x", decompressedSize, maxDecompressedSize))
	}

	l := len(compressed)
	d := int(decompressedSize)

	out := make([]byte, d)
	copy(out, compressed) // prelude: the undecoded tail of out carries the footer/high literals

	footer := binary.LittleEndian.Uint32(compressed[l-8 : l-4])
	inIdx := l - int((footer>>24)&0xff)
	stopIdx := l - int(footer&0x00ff_ffff)
	outIdx := d

	if inIdx < 0 || inIdx > l || stopIdx < 0 || stopIdx > l {
		return nil, newError("lzss decompress", KindInvalidFormat,
			fmt.Errorf("footer-derived indices out of range: in=%d stop=%d len=%d", inIdx, stopIdx, l))
	}

	for inIdx > stopIdx {
		inIdx--
		ctrl := compressed[inIdx]

		for i := 0; i < 8; i++ {
			if inIdx <= stopIdx || inIdx == 0 || outIdx == 0 {
				break
			}

			if ctrl&0x80 != 0 {
				if inIdx < 2 {
					return nil, newError("lzss decompress", KindInvalidFormat,
						fmt.Errorf("back-reference segment underflows input at index %d", inIdx))
				}
				inIdx -= 2
				seg := binary.LittleEndian.Uint16(compressed[inIdx : inIdx+2])

				length := int((seg>>12)&0xf) + 3
				offset := int(seg&0x0fff) + 2

				if outIdx < length {
					return nil, newError("lzss decompress", KindInvalidFormat,
						fmt.Errorf("back-reference length %d exceeds remaining output at index %d", length, outIdx))
				}

				for j := 0; j < length; j++ {
					if outIdx+offset >= d {
						return nil, newError("lzss decompress", KindInvalidFormat,
							fmt.Errorf("back-reference offset %d out of range at output index %d (size %d)", offset, outIdx, d))
					}
					outIdx--
					out[outIdx] = out[outIdx+offset+1]
				}
			} else {
				if outIdx < 1 || inIdx < 1 {
					return nil, newError("lzss decompress", KindInvalidFormat,
						fmt.Errorf("literal copy underflows a buffer at out=%d in=%d", outIdx, inIdx))
				}
				outIdx--
				inIdx--
				out[outIdx] = compressed[inIdx]
			}

			ctrl <<= 1
		}
	}

	return out, nil
}
