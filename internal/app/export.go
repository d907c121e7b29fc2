package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/witanage/CW-Budget-sub000/internal/analytics"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// Export renders historical daily rates as CSV and/or a PNG chart, optionally
// overlaying a forecast with its confidence band.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errNoDatabase
	}
	defer closeStore()

	to := storage.Day(time.Now().UTC())
	if opts.To != nil {
		to = storage.Day(*opts.To)
	}

	from := to.AddDate(0, -a.Config.Forecast.DefaultHistoryMonths, 0)
	if opts.From != nil {
		from = storage.Day(*opts.From)
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	observations, err := store.ListObservations(ctx, from, to, storage.SourceAny)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		a.Logger.Info().Msg("no observations found for export window")
		return nil
	}

	daily := analytics.Aggregate(analytics.GranularityDaily, observations)
	daily = downsampleBuckets(daily, opts.MaxPoints)

	var forecast *analytics.ForecastResult
	if opts.ForecastDays > 0 {
		result, forecastErr := analytics.Forecast(daily, opts.ForecastDays)
		if forecastErr != nil {
			if errors.Is(forecastErr, analytics.ErrInsufficientData) {
				a.Logger.Warn().Msg("not enough history to overlay a forecast")
			} else {
				return forecastErr
			}
		} else {
			forecast = &result
		}
	}

	a.Logger.Info().Int("buckets", len(daily)).Msg("exporting daily rates")

	if opts.CSVPath != "" {
		if err := writeBucketsCSV(opts.CSVPath, daily); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBucketsPNG(opts.PNGPath, daily, forecast); err != nil {
			return err
		}
	}

	return nil
}

func downsampleBuckets(buckets []analytics.AggregatedPeriod, max int) []analytics.AggregatedPeriod {
	if max <= 0 || len(buckets) <= max {
		return buckets
	}

	result := make([]analytics.AggregatedPeriod, 0, max)
	step := float64(len(buckets)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		result = append(result, buckets[idx])
	}
	return result
}

func writeBucketsCSV(path string, buckets []analytics.AggregatedPeriod) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "avg_buy_rate", "avg_sell_rate", "mid_rate", "sample_count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, bucket := range buckets {
		record := []string{
			bucket.PeriodStart.Format("2006-01-02"),
			bucket.AvgBuyRate.String(),
			bucket.AvgSellRate.String(),
			bucket.MidRate.String(),
			strconv.Itoa(bucket.SampleCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeBucketsPNG(path string, buckets []analytics.AggregatedPeriod, forecast *analytics.ForecastResult) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(buckets))
	mid := make([]float64, len(buckets))
	for i, bucket := range buckets {
		x[i] = bucket.PeriodStart
		mid[i] = bucket.MidRate.InexactFloat64()
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (LKR)",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Mid rate",
				XValues: x,
				YValues: mid,
			},
		},
	}

	if forecast != nil && len(forecast.Points) > 0 {
		fx := make([]time.Time, len(forecast.Points))
		predicted := make([]float64, len(forecast.Points))
		upper := make([]float64, len(forecast.Points))
		lower := make([]float64, len(forecast.Points))
		for i, point := range forecast.Points {
			fx[i] = point.Date
			predicted[i] = point.PredictedMidRate.InexactFloat64()
			upper[i] = point.UpperBound.InexactFloat64()
			lower[i] = point.LowerBound.InexactFloat64()
		}
		graph.Series = append(graph.Series,
			chart.TimeSeries{Name: "Forecast", XValues: fx, YValues: predicted},
			chart.TimeSeries{Name: "Upper bound", XValues: fx, YValues: upper},
			chart.TimeSeries{Name: "Lower bound", XValues: fx, YValues: lower},
		)
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
