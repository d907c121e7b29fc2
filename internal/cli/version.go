package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/witanage/CW-Budget-sub000/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ratesd %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
	},
}
