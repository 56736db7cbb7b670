// Package ncch reads the NCCH container format used by the Nintendo 3DS: a
// nested, block-addressed binary layout that packages an executable's
// metadata (ExHeader), a small directory of named executable sections
// (ExeFS), and an optional read-only filesystem image (RomFS), optionally
// wrapped inside an outer multi-partition container (NCSD) whose first
// partition is the bootable NCCH.
//
// This package only reads. It never decrypts AES-CTR/AES-CBC content
// (it detects the resulting program-ID mismatch and reports KindEncrypted
// instead), never verifies signatures or hashes, and never writes NCCH,
// ExeFS, or RomFS images.
//
// This package comes with a CLI. You can install it like this:
//
//	go install github.com/go3ds/ncch/cmd/ncchtool@latest
package ncch
