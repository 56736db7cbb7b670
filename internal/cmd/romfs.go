package cmd

import (
	"github.com/go3ds/ncch"
	"github.com/spf13/cobra"
)

func init() {
	romfsCmd.Flags().AddFlagSet(&processFlags)
	rootCmd.AddCommand(romfsCmd)
}

type romfsResult struct {
	File   string `json:"file"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

var romfsCmd = &cobra.Command{
	Use:   "romfs [file...]",
	Short: "Print the byte range of the embedded RomFS as JSON",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		processFiles(args, func(path string) interface{} {
			reader := ncch.New(path)
			defer reader.Close()

			romfs, err := reader.ReadRomFS()
			if err != nil {
				return failf(path, "%v", err)
			}
			defer romfs.Source.Close()

			return romfsResult{File: path, Offset: romfs.Offset, Size: romfs.Size}
		})
	},
}
