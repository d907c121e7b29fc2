package analytics

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientData indicates the history window holds too few points to
// fit a trend.
var ErrInsufficientData = errors.New("analytics: insufficient data for forecast")

// minForecastPoints is the smallest history that yields a line instead of a
// degenerate single-point fit.
const minForecastPoints = 2

// historyTailLen bounds how much history is echoed back in the result.
const historyTailLen = 30

// zBand is the two-sided 95% normal quantile used for the confidence band.
const zBand = 1.96

// ForecastPoint is one projected future value with its confidence bounds.
type ForecastPoint struct {
	Date             time.Time       `json:"date"`
	PredictedMidRate decimal.Decimal `json:"predicted_mid_rate"`
	UpperBound       decimal.Decimal `json:"upper_bound"`
	LowerBound       decimal.Decimal `json:"lower_bound"`
}

// ForecastModel carries the fitted-model metadata.
type ForecastModel struct {
	SlopePerDay float64 `json:"slope_per_day"`
	Intercept   float64 `json:"intercept"`
	RSquared    float64 `json:"r_squared"`
	DataPoints  int     `json:"data_points"`
}

// ForecastResult is the full projection: a tail of the input series, the
// projected points, and the model that produced them.
type ForecastResult struct {
	History []AggregatedPeriod `json:"history"`
	Points  []ForecastPoint    `json:"points"`
	Model   ForecastModel      `json:"model"`
}

// Forecast fits ordinary least squares of daily mid-rate against elapsed day
// index and projects horizonDays past the last observed date. The band
// half-width is the residual standard error scaled by sqrt of the point's
// out-of-sample distance, so uncertainty widens with the horizon.
func Forecast(daily []AggregatedPeriod, horizonDays int) (ForecastResult, error) {
	n := len(daily)
	if n < minForecastPoints {
		return ForecastResult{}, ErrInsufficientData
	}

	origin := daily[0].PeriodStart
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, bucket := range daily {
		xs[i] = bucket.PeriodStart.Sub(origin).Hours() / 24
		ys[i] = bucket.MidRate.InexactFloat64()
	}

	slope, intercept := fitLine(xs, ys)
	rSquared, residualStdErr := fitQuality(xs, ys, slope, intercept)

	lastDate := daily[n-1].PeriodStart
	lastX := xs[n-1]

	points := make([]ForecastPoint, 0, horizonDays)
	for k := 1; k <= horizonDays; k++ {
		predicted := intercept + slope*(lastX+float64(k))
		halfWidth := zBand * residualStdErr * math.Sqrt(float64(k))

		points = append(points, ForecastPoint{
			Date:             lastDate.AddDate(0, 0, k),
			PredictedMidRate: decimal.NewFromFloat(predicted),
			UpperBound:       decimal.NewFromFloat(predicted + halfWidth),
			LowerBound:       decimal.NewFromFloat(predicted - halfWidth),
		})
	}

	history := daily
	if len(history) > historyTailLen {
		history = history[len(history)-historyTailLen:]
	}

	return ForecastResult{
		History: history,
		Points:  points,
		Model: ForecastModel{
			SlopePerDay: slope,
			Intercept:   intercept,
			RSquared:    rSquared,
			DataPoints:  n,
		},
	}, nil
}

func fitLine(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))

	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func fitQuality(xs, ys []float64, slope, intercept float64) (rSquared, residualStdErr float64) {
	n := len(xs)

	meanY := 0.0
	for _, y := range ys {
		meanY += y
	}
	meanY /= float64(n)

	var sse, sst float64
	for i := range xs {
		residual := ys[i] - (intercept + slope*xs[i])
		sse += residual * residual
		dev := ys[i] - meanY
		sst += dev * dev
	}

	switch {
	case sst == 0 && sse == 0:
		rSquared = 1
	case sst == 0:
		rSquared = 0
	default:
		rSquared = 1 - sse/sst
	}

	if n > 2 {
		residualStdErr = math.Sqrt(sse / float64(n-2))
	}
	return rSquared, residualStdErr
}
