package ncch

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// buildNCCH assembles a minimal synthetic NCCH image: a 0x200-byte NCCH
// header, a 0x800-byte ExHeader immediately following it, a 0x200-byte
// ExeFS header with the given sections, and the section payloads
// themselves, back to back, mirroring the on-disk NCCH/ExHeader/ExeFS layout.
type sectionSpec struct {
	name string
	data []byte
}

func buildNCCH(t *testing.T, programID uint64, exheaderProgramID uint64, compressed bool, sections []sectionSpec, romfsBlocks, romfsSizeBlocks uint32) []byte {
	t.Helper()

	const (
		ncchOff    = 0
		exheaderOff = ncchOff + ncchHdrSize
		exefsOff    = exheaderOff + exheaderSize // byte offset; must be block-aligned
	)
	if exefsOff%kBlockSize != 0 {
		t.Fatalf("test layout bug: exefsOff %#x not block-aligned", exefsOff)
	}

	exefsDirSize := exefsHeaderSize
	sectionsStart := exefsOff + exefsDirSize

	buf := make([]byte, sectionsStart)

	// NCCH header.
	copy(buf[0x100:0x104], "NCCH")
	binary.LittleEndian.PutUint64(buf[0x118:], programID)
	binary.LittleEndian.PutUint32(buf[0x1a0:], uint32(exefsOff/kBlockSize))

	var totalSectionBytes int
	for _, s := range sections {
		totalSectionBytes += len(s.data)
	}
	exefsSizeBlocks := (exefsDirSize + totalSectionBytes + kBlockSize - 1) / kBlockSize
	binary.LittleEndian.PutUint32(buf[0x1a4:], uint32(exefsSizeBlocks))
	binary.LittleEndian.PutUint32(buf[0x1b0:], romfsBlocks)
	binary.LittleEndian.PutUint32(buf[0x1b4:], romfsSizeBlocks)

	// ExHeader.
	if compressed {
		buf[exheaderOff+0x00d] = 0x01
	}
	binary.LittleEndian.PutUint64(buf[exheaderOff+0x200:], exheaderProgramID)

	// ExeFS directory + sections.
	offset := uint32(0)
	for i, s := range sections {
		slot := buf[exefsOff+i*exefsSlotSize : exefsOff+(i+1)*exefsSlotSize]
		copy(slot[:8], s.name)
		binary.LittleEndian.PutUint32(slot[0x8:], offset)
		binary.LittleEndian.PutUint32(slot[0xc:], uint32(len(s.data)))
		offset += uint32(len(s.data))
	}

	for _, s := range sections {
		buf = append(buf, s.data...)
	}

	if romfsBlocks != 0 && romfsSizeBlocks != 0 {
		romfsAbsByte := int64(romfsBlocks)*kBlockSize + romfsIVFCSkip
		want := romfsAbsByte + int64(romfsSizeBlocks)*kBlockSize - romfsIVFCSkip
		for int64(len(buf)) < want {
			buf = append(buf, 0)
		}
	}

	return buf
}

func writeTempImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.ncch")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write temp image: %v", err)
	}
	return path
}

func TestReaderBareNCCHUncompressed(t *testing.T) {
	codeData := make([]byte, 0x40)
	for i := range codeData {
		codeData[i] = byte(i)
	}
	image := buildNCCH(t, 0x0004000000123400, 0x0004000000123400, false,
		[]sectionSpec{{name: ".code", data: codeData}}, 0, 0)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	got, err := reader.LoadSectionExeFS(".code")
	if err != nil {
		t.Fatalf("LoadSectionExeFS: %v", err)
	}
	if len(got) != len(codeData) {
		t.Fatalf("got %d bytes, want %d", len(got), len(codeData))
	}
	for i := range codeData {
		if got[i] != codeData[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], codeData[i])
		}
	}
}

func TestReaderNCSDWrapper(t *testing.T) {
	programID := uint64(0x0004000000998800)
	inner := buildNCCH(t, programID, programID, false,
		[]sectionSpec{{name: ".code", data: []byte("hi")}}, 0, 0)

	image := make([]byte, ncsdOffset+len(inner))
	copy(image[0x100:0x104], "NCSD")
	copy(image[ncsdOffset:], inner)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	got, err := reader.ReadProgramID()
	if err != nil {
		t.Fatalf("ReadProgramID: %v", err)
	}
	if got != programID {
		t.Fatalf("ReadProgramID = %#x, want %#x", got, programID)
	}
}

func TestReaderCompressedCode(t *testing.T) {
	compressed := lzssLiteralFixture()
	programID := uint64(0x0004000000445500)
	image := buildNCCH(t, programID, programID, true,
		[]sectionSpec{{name: ".code", data: compressed}}, 0, 0)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	got, err := reader.LoadSectionExeFS(".code")
	if err != nil {
		t.Fatalf("LoadSectionExeFS: %v", err)
	}
	want, err := lzssDecompress(compressed)
	if err != nil {
		t.Fatalf("lzssDecompress reference: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestReaderProgramIDMismatchIsEncrypted(t *testing.T) {
	image := buildNCCH(t, 0x0004000000123400, 0x0004020000123400, false,
		[]sectionSpec{{name: ".code", data: []byte("x")}}, 0, 0)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	err := reader.Load()
	if err == nil {
		t.Fatal("expected an Encrypted error")
	}
	if !IsEncrypted(err) {
		t.Fatalf("expected IsEncrypted(err), got %v", err)
	}
}

func TestReaderMissingSectionIsNotUsed(t *testing.T) {
	image := buildNCCH(t, 0x0004000000123400, 0x0004000000123400, false,
		[]sectionSpec{
			{name: ".code", data: []byte("x")},
			{name: "icon", data: []byte("y")},
			{name: "banner", data: []byte("z")},
		}, 0, 0)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	_, err := reader.LoadSectionExeFS("logo")
	if err == nil {
		t.Fatal("expected a NotUsed error for an absent section")
	}
	if !IsNotUsed(err) {
		t.Fatalf("expected IsNotUsed(err), got %v", err)
	}
}

func TestReaderTruncatedFile(t *testing.T) {
	image := buildNCCH(t, 0x0004000000123400, 0x0004000000123400, false,
		[]sectionSpec{{name: ".code", data: []byte("x")}}, 0, 0)
	truncated := image[:len(image)-0x300]
	path := writeTempImage(t, truncated)

	reader := New(path)
	defer reader.Close()

	err := reader.Load()
	if err == nil {
		t.Fatal("expected an error for a truncated file")
	}
	var nerr *Error
	if !errors.As(err, &nerr) || nerr.Kind != KindError {
		t.Fatalf("expected KindError, got %v", err)
	}
}

func TestReaderLoadIsIdempotent(t *testing.T) {
	image := buildNCCH(t, 0x0004000000123400, 0x0004000000123400, false,
		[]sectionSpec{{name: ".code", data: []byte("x")}}, 0, 0)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	if err := reader.Load(); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	first := reader.header
	if err := reader.Load(); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if reader.header != first {
		t.Fatalf("second Load observed different header state: %+v vs %+v", reader.header, first)
	}
}

func TestReaderEmptySlotSkippedEvenIfLaterSlotMatches(t *testing.T) {
	image := buildNCCH(t, 0x0004000000123400, 0x0004000000123400, false,
		[]sectionSpec{
			{name: ".code", data: []byte("abc")},
		}, 0, 0)

	// Move the .code entry from slot 0 to slot 1, leaving slot 0 all-zero
	// (empty). Lookup must skip the empty slot and find the later match.
	const exefsOff = ncchHdrSize + exheaderSize
	copy(image[exefsOff+exefsSlotSize:exefsOff+2*exefsSlotSize], image[exefsOff:exefsOff+exefsSlotSize])
	for i := exefsOff; i < exefsOff+exefsSlotSize; i++ {
		image[i] = 0
	}
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	got, err := reader.LoadSectionExeFS(".code")
	if err != nil {
		t.Fatalf("LoadSectionExeFS: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("LoadSectionExeFS = %q, want %q", got, "abc")
	}

	// Among non-empty slots sharing a name, the lower-indexed one wins.
	dir := exefsDirectory{Slots: []exefsSlot{
		{Name: ".code", Offset: 0, Size: 3},
		{Name: ".code", Offset: 100, Size: 9},
	}}
	slot, ok := dir.find(".code")
	if !ok {
		t.Fatal("expected a match")
	}
	if slot.Offset != 0 || slot.Size != 3 {
		t.Fatalf("expected the lower-indexed slot to win, got %+v", slot)
	}
}

func TestReaderRomFSAbsentIsNotUsed(t *testing.T) {
	image := buildNCCH(t, 0x0004000000123400, 0x0004000000123400, false,
		[]sectionSpec{{name: ".code", data: []byte("x")}}, 0, 0)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	_, err := reader.ReadRomFS()
	if !IsNotUsed(err) {
		t.Fatalf("expected IsNotUsed(err), got %v", err)
	}
}

func TestReaderRomFSRange(t *testing.T) {
	// romfsSizeBlocks must cover more than romfsIVFCSkip (0x1000 == 8
	// blocks) or the computed RomFS size goes negative.
	const romfsBlocks, romfsSizeBlocks = 4, 10
	image := buildNCCH(t, 0x0004000000123400, 0x0004000000123400, false,
		[]sectionSpec{{name: ".code", data: []byte("x")}}, romfsBlocks, romfsSizeBlocks)
	path := writeTempImage(t, image)

	reader := New(path)
	defer reader.Close()

	romfs, err := reader.ReadRomFS()
	if err != nil {
		t.Fatalf("ReadRomFS: %v", err)
	}
	defer romfs.Source.Close()

	wantOffset := int64(romfsBlocks)*kBlockSize + romfsIVFCSkip
	wantSize := int64(romfsSizeBlocks)*kBlockSize - romfsIVFCSkip
	if romfs.Offset != wantOffset || romfs.Size != wantSize {
		t.Fatalf("got offset=%#x size=%#x, want offset=%#x size=%#x", romfs.Offset, romfs.Size, wantOffset, wantSize)
	}
}
