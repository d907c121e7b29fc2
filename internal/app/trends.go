package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/witanage/CW-Budget-sub000/internal/analytics"
	"github.com/witanage/CW-Budget-sub000/internal/service"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// Trends prints aggregated period buckets for the trailing months.
func (a *App) Trends(ctx context.Context, opts TrendsOptions) error {
	granularity, err := analytics.ParseGranularity(opts.Period)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errNoDatabase
	}
	defer closeStore()

	var sources []storage.Source
	for _, raw := range opts.Sources {
		sources = append(sources, storage.Source(raw))
	}

	rates := service.NewRates(store, store, nil, a.Logger)
	periods, err := rates.Trends(ctx, granularity, opts.Months, sources)
	if err != nil {
		return err
	}
	if len(periods) == 0 {
		fmt.Fprintln(os.Stdout, "no data in the requested window")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Period\tAvg Buy\tAvg Sell\tMid\tSamples\tVolatility\tRange")

	for _, period := range periods {
		volatility, monthRange := "-", "-"
		if period.Volatility != nil {
			volatility = fmt.Sprintf("%.4f", *period.Volatility)
		}
		if period.MonthRange != nil {
			monthRange = period.MonthRange.StringFixed(4)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			period.PeriodStart.Format("2006-01-02"),
			period.AvgBuyRate.StringFixed(4),
			period.AvgSellRate.StringFixed(4),
			period.MidRate.StringFixed(4),
			period.SampleCount,
			volatility,
			monthRange,
		)
	}

	writer.Flush()
	return nil
}

// Forecast prints a trend projection with its confidence band.
func (a *App) Forecast(ctx context.Context, opts ForecastOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errNoDatabase
	}
	defer closeStore()

	rates := service.NewRates(store, store, nil, a.Logger)
	result, err := rates.ForecastRates(ctx, opts.HistoryMonths, opts.HorizonDays)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "model: slope=%.6f/day r²=%.4f points=%d\n",
		result.Model.SlopePerDay, result.Model.RSquared, result.Model.DataPoints)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tPredicted Mid\tLower\tUpper")
	for _, point := range result.Points {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			point.Date.Format("2006-01-02"),
			point.PredictedMidRate.StringFixed(4),
			point.LowerBound.StringFixed(4),
			point.UpperBound.StringFixed(4),
		)
	}

	writer.Flush()
	return nil
}
