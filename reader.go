package ncch

import (
	"fmt"

	"github.com/go3ds/ncch/ctrio"
)

// loadState is the Reader's small state machine: {Unloaded, Loaded, Failed}
// rather than a bare boolean, so that parsed-state fields are only ever read
// once Loaded.
type loadState int

const (
	stateUnloaded loadState = iota
	stateLoaded
	stateFailed
)

// Reader is bound to a single NCCH (optionally NCSD-wrapped) image. It is
// single-threaded and not internally synchronised: a single Reader must
// not be called concurrently, though distinct Readers, or a Reader plus a
// RomFS it produced, are fully independent.
type Reader struct {
	path string
	src  ctrio.Source

	state   loadState
	failure error

	ncchOffset     int64
	header         ncchHeader
	exheader       exheader
	exefsAbsOffset int64
	exefsDir       exefsDirectory
}

// New constructs a Reader bound to path. The file is not opened until the
// first Load (explicit or implicit).
func New(path string) *Reader {
	return &Reader{path: path}
}

// Open rebinds the Reader to a new path, discarding any prior parsed state
// and releasing the previous backing Source. Open itself never fails: I/O
// errors surface at the next Load.
func (r *Reader) Open(path string) {
	if r.src != nil {
		r.src.Close()
	}
	r.path = path
	r.src = nil
	r.state = stateUnloaded
	r.failure = nil
}

// Close releases the Reader's backing Source, if any.
func (r *Reader) Close() error {
	if r.src == nil {
		return nil
	}
	err := r.src.Close()
	r.src = nil
	return err
}

// Load parses the container header, ExHeader, and ExeFS directory. It is
// idempotent: once it has succeeded, subsequent calls return nil without
// re-reading, and once it has failed, subsequent calls return the same
// error; the failure is memoised as a terminal state.
func (r *Reader) Load() error {
	switch r.state {
	case stateLoaded:
		return nil
	case stateFailed:
		return r.failure
	}

	if err := r.load(); err != nil {
		if r.src != nil {
			r.src.Close()
			r.src = nil
		}
		r.state = stateFailed
		r.failure = err
		return err
	}
	r.state = stateLoaded
	return nil
}

func (r *Reader) load() error {
	src, err := ctrio.Open(r.path)
	if err != nil {
		return newError("load", KindError, err)
	}
	r.src = src

	ncchOffset, err := detectBaseOffset(src)
	if err != nil {
		return err
	}
	if ncchOffset != 0 {
		if err := validateNCCHMagic(src, ncchOffset); err != nil {
			return err
		}
	}

	header, err := readNCCHHeader(src, ncchOffset)
	if err != nil {
		return err
	}

	exh, err := readExheader(src, ncchOffset+int64(ncchHdrSize))
	if err != nil {
		return err
	}

	if err := checkProgramID(exh, header); err != nil {
		return err
	}

	exefsAbsOffset := ncchOffset + int64(header.ExeFSOffset)*kBlockSize

	fileSize, err := src.Size()
	if err != nil {
		return newError("load", KindError, err)
	}
	if exefsAbsOffset+exefsHeaderSize > fileSize {
		return newError("load", KindError,
			fmt.Errorf("ExeFS header at 0x%x exceeds file size 0x%x", exefsAbsOffset, fileSize))
	}

	dir, err := readExeFSDirectory(src, exefsAbsOffset)
	if err != nil {
		return err
	}

	r.ncchOffset = ncchOffset
	r.header = header
	r.exheader = exh
	r.exefsAbsOffset = exefsAbsOffset
	r.exefsDir = dir
	return nil
}

// LoadSectionExeFS looks up name (an up-to-8-byte ASCII section name, e.g.
// ".code", "icon", "banner", "logo") in the ExeFS directory and returns its
// bytes, transparently LZSS-decompressing ".code" when the ExHeader
// compression flag is set. Returns a KindNotUsed Error if no such section
// exists.
func (r *Reader) LoadSectionExeFS(name string) ([]byte, error) {
	if err := r.Load(); err != nil {
		return nil, err
	}

	slot, ok := r.exefsDir.find(name)
	if !ok {
		return nil, newError("load ExeFS section", KindNotUsed, fmt.Errorf("no such section: %q", name))
	}

	abs := r.exefsAbsOffset + exefsHeaderSize + int64(slot.Offset)

	fileSize, err := r.src.Size()
	if err != nil {
		return nil, newError("load ExeFS section", KindError, err)
	}
	if abs+int64(slot.Size) > fileSize {
		return nil, newError("load ExeFS section", KindInvalidFormat,
			fmt.Errorf("section %q range [0x%x, 0x%x) exceeds file size 0x%x", name, abs, abs+int64(slot.Size), fileSize))
	}

	raw := make([]byte, slot.Size)
	if err := r.src.ReadExact(raw, abs); err != nil {
		return nil, newError("load ExeFS section", KindError, err)
	}

	if name == ".code" && r.exheader.IsCompressed {
		out, err := lzssDecompress(raw)
		if err != nil {
			kind := KindInvalidFormat
			if lerr, ok := err.(*Error); ok && lerr.Kind == KindMemoryAllocationFailed {
				kind = KindMemoryAllocationFailed
			}
			return nil, newError("load ExeFS section", kind, err)
		}
		return out, nil
	}

	return raw, nil
}

// ReadRomFS returns the byte range of the embedded RomFS, along with an
// independent Source the caller reads from without disturbing this
// Reader's own state. Returns a KindNotUsed Error if the NCCH carries no
// RomFS.
func (r *Reader) ReadRomFS() (*RomFS, error) {
	if err := r.Load(); err != nil {
		return nil, err
	}
	return locateRomFS(r.src, r.ncchOffset, r.header)
}

// ReadProgramID returns the NCCH's program ID.
func (r *Reader) ReadProgramID() (uint64, error) {
	if err := r.Load(); err != nil {
		return 0, err
	}
	return r.header.ProgramID, nil
}

// Summary describes the ExHeader/NCCH fields a 3DS loader typically logs
// when it loads an NCCH. The core itself writes nothing to a log sink;
// callers that want this information (such as the CLI) call Info after a
// successful Load.
type Summary struct {
	ProgramID     Hex64
	Version       uint16
	Name          string
	IsCompressed  bool
	EntryAddress  Hex32
	CodeSize      Hex32
	StackSize     Hex32
	BSSSize       Hex32
	CoreVersion   uint32
	Priority      uint8
	ResourceLimit uint8
	SystemMode    uint8
	HasExeFS      bool
	HasRomFS      bool
}

// Info returns a Summary of the loaded image's ExHeader/NCCH metadata.
func (r *Reader) Info() (Summary, error) {
	if err := r.Load(); err != nil {
		return Summary{}, err
	}
	return Summary{
		ProgramID:     Hex64(r.header.ProgramID),
		Version:       r.header.Version,
		Name:          r.exheader.Name,
		IsCompressed:  r.exheader.IsCompressed,
		EntryAddress:  Hex32(r.exheader.EntryAddress),
		CodeSize:      Hex32(r.exheader.CodeSize),
		StackSize:     Hex32(r.exheader.StackSize),
		BSSSize:       Hex32(r.exheader.BSSSize),
		CoreVersion:   r.exheader.CoreVersion,
		Priority:      r.exheader.Priority,
		ResourceLimit: r.exheader.ResourceLimit,
		SystemMode:    r.exheader.SystemMode,
		HasExeFS:      len(r.exefsDir.Slots) > 0,
		HasRomFS:      r.header.RomFSOffset != 0 && r.header.RomFSSize != 0,
	}, nil
}
