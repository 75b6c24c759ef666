package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frymyresume/interviewd/internal/scoring"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the scoring version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s\n", app, version)
		fmt.Printf("scoring version: %s\n", scoring.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
