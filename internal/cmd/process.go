package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// processFunc inspects the NCCH image at path and returns the value to be
// JSON-encoded for it.
type processFunc func(path string) interface{}

var (
	processFlags pflag.FlagSet
	compact      = processFlags.BoolP("compact", "c", false, "disable pretty-printing of JSON output")
)

// processFiles runs process against every path and JSON-encodes the
// results to stdout, one object per line in compact mode or pretty-printed
// otherwise. The NCCH reader needs random access to a real file (for RomFS
// hand-off and `.code` decompression), so there is no stdin fallback here.
func processFiles(paths []string, process processFunc) {
	encoder := json.NewEncoder(os.Stdout)
	if !*compact {
		encoder.SetIndent("", "  ")
	}
	encoder.SetEscapeHTML(false)

	for _, path := range paths {
		encoder.Encode(process(path))
	}
}

type pathResult struct {
	File string `json:"file"`
	Err  string `json:"error,omitempty"`
}

func failf(path string, format string, args ...interface{}) interface{} {
	fmt.Fprintf(os.Stderr, "%s: %s\n", path, fmt.Sprintf(format, args...))
	return pathResult{File: path, Err: fmt.Sprintf(format, args...)}
}
