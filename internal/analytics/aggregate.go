package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// Granularity selects the aggregation bucket size.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// ParseGranularity validates a caller-supplied granularity string.
func ParseGranularity(value string) (Granularity, error) {
	switch Granularity(value) {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return Granularity(value), nil
	}
	return "", fmt.Errorf("analytics: unknown granularity %q", value)
}

// AggregatedPeriod is one derived bucket. Volatility and MonthRange are only
// populated at monthly granularity and only when the month holds at least two
// daily samples.
type AggregatedPeriod struct {
	PeriodStart time.Time        `json:"period_start"`
	AvgBuyRate  decimal.Decimal  `json:"avg_buy_rate"`
	AvgSellRate decimal.Decimal  `json:"avg_sell_rate"`
	MidRate     decimal.Decimal  `json:"mid_rate"`
	SampleCount int              `json:"sample_count"`
	Volatility  *float64         `json:"volatility,omitempty"`
	MonthRange  *decimal.Decimal `json:"month_range,omitempty"`
}

var two = decimal.NewFromInt(2)

// Aggregate folds raw observations into period buckets in ascending order.
// Days with no data produce no bucket; nothing is interpolated. The result is
// independent of the observations' input order.
func Aggregate(granularity Granularity, observations []storage.RateObservation) []AggregatedPeriod {
	daily := dailyBuckets(observations)
	if granularity == GranularityDaily {
		return daily
	}

	grouped := make(map[time.Time][]AggregatedPeriod)
	for _, bucket := range daily {
		key := periodStart(granularity, bucket.PeriodStart)
		grouped[key] = append(grouped[key], bucket)
	}

	keys := make([]time.Time, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	periods := make([]AggregatedPeriod, 0, len(keys))
	for _, key := range keys {
		days := grouped[key]
		period := averageDays(key, days)
		if granularity == GranularityMonthly {
			attachMonthlyStats(&period, days)
		}
		periods = append(periods, period)
	}
	return periods
}

// dailyBuckets averages all sources present on each day. Sources missing a
// day simply do not contribute.
func dailyBuckets(observations []storage.RateObservation) []AggregatedPeriod {
	grouped := make(map[time.Time][]storage.RateObservation)
	for _, obs := range observations {
		day := storage.Day(obs.Date)
		grouped[day] = append(grouped[day], obs)
	}

	days := make([]time.Time, 0, len(grouped))
	for day := range grouped {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	buckets := make([]AggregatedPeriod, 0, len(days))
	for _, day := range days {
		obs := grouped[day]
		count := decimal.NewFromInt(int64(len(obs)))

		buySum, sellSum := decimal.Zero, decimal.Zero
		for _, o := range obs {
			buySum = buySum.Add(o.BuyRate)
			sellSum = sellSum.Add(o.SellRate)
		}

		avgBuy := buySum.Div(count)
		avgSell := sellSum.Div(count)

		buckets = append(buckets, AggregatedPeriod{
			PeriodStart: day,
			AvgBuyRate:  avgBuy,
			AvgSellRate: avgSell,
			MidRate:     avgBuy.Add(avgSell).Div(two),
			SampleCount: len(obs),
		})
	}
	return buckets
}

func averageDays(start time.Time, days []AggregatedPeriod) AggregatedPeriod {
	count := decimal.NewFromInt(int64(len(days)))

	buySum, sellSum := decimal.Zero, decimal.Zero
	for _, day := range days {
		buySum = buySum.Add(day.AvgBuyRate)
		sellSum = sellSum.Add(day.AvgSellRate)
	}

	avgBuy := buySum.Div(count)
	avgSell := sellSum.Div(count)

	return AggregatedPeriod{
		PeriodStart: start,
		AvgBuyRate:  avgBuy,
		AvgSellRate: avgSell,
		MidRate:     avgBuy.Add(avgSell).Div(two),
		SampleCount: len(days),
	}
}

// attachMonthlyStats computes volatility (population standard deviation of
// the daily buy rates) and the month's buy-rate range. Both stay nil with
// fewer than two daily samples; weekly buckets never carry them.
func attachMonthlyStats(period *AggregatedPeriod, days []AggregatedPeriod) {
	if len(days) < 2 {
		return
	}

	minBuy, maxBuy := days[0].AvgBuyRate, days[0].AvgBuyRate
	mean := 0.0
	for _, day := range days {
		mean += day.AvgBuyRate.InexactFloat64()
		if day.AvgBuyRate.LessThan(minBuy) {
			minBuy = day.AvgBuyRate
		}
		if day.AvgBuyRate.GreaterThan(maxBuy) {
			maxBuy = day.AvgBuyRate
		}
	}
	mean /= float64(len(days))

	variance := 0.0
	for _, day := range days {
		diff := day.AvgBuyRate.InexactFloat64() - mean
		variance += diff * diff
	}
	variance /= float64(len(days))

	volatility := math.Sqrt(variance)
	monthRange := maxBuy.Sub(minBuy)
	period.Volatility = &volatility
	period.MonthRange = &monthRange
}

// periodStart anchors a day to its calendar period: Monday for weeks, the
// first of the month for months. A bucket therefore never straddles its
// calendar boundary.
func periodStart(granularity Granularity, day time.Time) time.Time {
	switch granularity {
	case GranularityWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}
