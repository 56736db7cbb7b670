package cmd

import (
	"fmt"
	"os"

	"github.com/go3ds/ncch"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	extractFlags  pflag.FlagSet
	extractSection = extractFlags.StringP("section", "s", ".code", "ExeFS section name to extract")
	extractOutput  = extractFlags.StringP("output", "o", "", "output file (default: stdout)")
)

func init() {
	extractCmd.Flags().AddFlagSet(&extractFlags)
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract a named ExeFS section, decompressing .code if needed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		reader := ncch.New(path)
		defer reader.Close()

		data, err := reader.LoadSectionExeFS(*extractSection)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(2)
		}

		out := os.Stdout
		if *extractOutput != "" {
			file, err := os.Create(*extractOutput)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", *extractOutput, err)
				os.Exit(2)
			}
			defer file.Close()
			out = file
		}

		if _, err := out.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(2)
		}
	},
}
