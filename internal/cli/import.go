package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/witanage/CW-Budget-sub000/internal/app"
)

var importPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import rates from a bank-exported CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importPath == "" {
			return fmt.Errorf("--file must be provided")
		}

		opts := app.ImportOptions{
			Path: importPath,
		}

		return getApp().ImportCSV(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "Path to the CSV file")
}
