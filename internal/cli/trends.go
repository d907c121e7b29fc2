package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/witanage/CW-Budget-sub000/internal/app"
)

var (
	trendsPeriod  string
	trendsMonths  int
	trendsSources []string
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Display aggregated rate trends",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trendsMonths <= 0 {
			return fmt.Errorf("--months must be greater than zero")
		}

		opts := app.TrendsOptions{
			Period:  trendsPeriod,
			Months:  trendsMonths,
			Sources: trendsSources,
		}

		return getApp().Trends(cmd.Context(), opts)
	},
}

func init() {
	trendsCmd.Flags().StringVar(&trendsPeriod, "period", "daily", "Bucket granularity: daily, weekly, or monthly")
	trendsCmd.Flags().IntVar(&trendsMonths, "months", 3, "Trailing months to aggregate")
	trendsCmd.Flags().StringSliceVar(&trendsSources, "sources", nil, "Restrict to these sources (comma separated)")
}
