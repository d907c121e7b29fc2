package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/witanage/CW-Budget-sub000/internal/app"
)

var (
	refreshDay    string
	refreshDryRun bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch rates from all enabled sources once",
	RunE: func(cmd *cobra.Command, args []string) error {
		day := time.Now().UTC()
		if refreshDay != "" {
			parsed, err := time.Parse("2006-01-02", refreshDay)
			if err != nil {
				return fmt.Errorf("invalid --day value: %w", err)
			}
			day = parsed
		}

		opts := app.RefreshOptions{
			Day:    day,
			DryRun: refreshDryRun,
		}

		return getApp().Refresh(cmd.Context(), opts)
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshDay, "day", "", "Calendar day to fetch (YYYY-MM-DD, defaults to today)")
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "Run without writing to storage")
}
