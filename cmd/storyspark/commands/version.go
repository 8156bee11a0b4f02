package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/cmd/storyspark/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if formatOutput == "raw" && queryOutput == "" {
			return outputResult(build.String() + "\n")
		}
		return outputResult(build.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
