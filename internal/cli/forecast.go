package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/witanage/CW-Budget-sub000/internal/app"
)

var (
	forecastMonths int
	forecastDays   int
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project future mid-rates from recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getApp().Config.Forecast

		months := forecastMonths
		if months <= 0 {
			months = cfg.DefaultHistoryMonths
		}
		days := forecastDays
		if days <= 0 {
			days = cfg.DefaultHorizonDays
		}
		if cfg.MaxHorizonDays > 0 && days > cfg.MaxHorizonDays {
			return fmt.Errorf("--days must not exceed %d", cfg.MaxHorizonDays)
		}

		opts := app.ForecastOptions{
			HistoryMonths: months,
			HorizonDays:   days,
		}

		return getApp().Forecast(cmd.Context(), opts)
	},
}

func init() {
	forecastCmd.Flags().IntVar(&forecastMonths, "months", 0, "Trailing months of history (defaults to config)")
	forecastCmd.Flags().IntVar(&forecastDays, "days", 0, "Days to project (defaults to config)")
}
