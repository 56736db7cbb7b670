package cmd

import (
	"github.com/go3ds/ncch"
	"github.com/spf13/cobra"
)

func init() {
	infoCmd.Flags().AddFlagSet(&processFlags)
	rootCmd.AddCommand(infoCmd)
}

type infoResult struct {
	File string `json:"file"`
	ncch.Summary
}

var infoCmd = &cobra.Command{
	Use:   "info [file...]",
	Short: "Print NCCH/ExHeader metadata as JSON",
	Long:  "Parse the NCCH (optionally NCSD-wrapped) container at each path and print its ExHeader/NCCH metadata",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		processFiles(args, func(path string) interface{} {
			reader := ncch.New(path)
			defer reader.Close()

			summary, err := reader.Info()
			if err != nil {
				return failf(path, "%v", err)
			}
			return infoResult{File: path, Summary: summary}
		})
	},
}
