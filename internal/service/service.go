package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/witanage/CW-Budget-sub000/internal/analytics"
	"github.com/witanage/CW-Budget-sub000/internal/importer"
	"github.com/witanage/CW-Budget-sub000/internal/settings"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// Rates is the read/import surface over the rate store: point lookups with
// fallback, bulk CSV import, trend aggregation, and forecasting. It is
// stateless and safe for concurrent callers.
type Rates struct {
	observations storage.ObservationStore
	refreshLogs  storage.RefreshLogStore
	settings     settings.Store
	csv          *importer.Importer
	logger       zerolog.Logger

	now func() time.Time
}

// NewRates constructs the rate query service.
func NewRates(observations storage.ObservationStore, refreshLogs storage.RefreshLogStore, settingsStore settings.Store, logger zerolog.Logger) *Rates {
	return &Rates{
		observations: observations,
		refreshLogs:  refreshLogs,
		settings:     settingsStore,
		csv:          importer.New(observations, logger),
		logger:       logger.With().Str("component", "rates_service").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Rate resolves the observation for a date, substituting the nearest earlier
// date when the exact one is absent. Returns storage.ErrNotFound when nothing
// exists at or before the date.
func (s *Rates) Rate(ctx context.Context, date time.Time, source storage.Source) (storage.ResolvedRate, error) {
	if source != storage.SourceAny && !storage.KnownSource(source) {
		return storage.ResolvedRate{}, fmt.Errorf("unknown source %q", source)
	}
	return s.observations.GetObservationWithFallback(ctx, date, source)
}

// ImportCSV parses and persists a bank-exported table. The summary always
// carries full per-row counts.
func (s *Rates) ImportCSV(ctx context.Context, raw string) (importer.Summary, error) {
	return s.csv.Import(ctx, raw)
}

// Trends aggregates the trailing months of observations into period buckets.
// An empty sources list means all sources.
func (s *Rates) Trends(ctx context.Context, granularity analytics.Granularity, months int, sources []storage.Source) ([]analytics.AggregatedPeriod, error) {
	if months <= 0 {
		return nil, fmt.Errorf("months must be greater than zero")
	}

	to := storage.Day(s.now())
	from := to.AddDate(0, -months, 0)

	observations, err := s.listForSources(ctx, from, to, sources)
	if err != nil {
		return nil, err
	}

	return analytics.Aggregate(granularity, observations), nil
}

// ForecastRates fits a trend over the trailing history window and projects
// horizonDays beyond the last observation.
func (s *Rates) ForecastRates(ctx context.Context, historyMonths, horizonDays int) (analytics.ForecastResult, error) {
	if historyMonths <= 0 {
		return analytics.ForecastResult{}, fmt.Errorf("history months must be greater than zero")
	}
	if horizonDays <= 0 {
		return analytics.ForecastResult{}, fmt.Errorf("horizon days must be greater than zero")
	}

	to := storage.Day(s.now())
	from := to.AddDate(0, -historyMonths, 0)

	observations, err := s.observations.ListObservations(ctx, from, to, storage.SourceAny)
	if err != nil {
		return analytics.ForecastResult{}, err
	}

	daily := analytics.Aggregate(analytics.GranularityDaily, observations)
	return analytics.Forecast(daily, horizonDays)
}

// RecentObservations returns the newest stored observations.
func (s *Rates) RecentObservations(ctx context.Context, limit int) ([]storage.RateObservation, error) {
	return s.observations.ListRecentObservations(ctx, limit)
}

// ObservationsBetween returns the raw series for an inclusive window.
func (s *Rates) ObservationsBetween(ctx context.Context, from, to time.Time, source storage.Source) ([]storage.RateObservation, error) {
	return s.observations.ListObservations(ctx, from, to, source)
}

// RefreshAttempts exposes the append-only attempt log for monitoring.
func (s *Rates) RefreshAttempts(ctx context.Context, limit int) ([]storage.RefreshAttempt, error) {
	if s.refreshLogs == nil {
		return nil, nil
	}
	return s.refreshLogs.ListRecentRefreshAttempts(ctx, limit)
}

// RefreshConfig reads the current operator-tunable scheduler settings.
func (s *Rates) RefreshConfig(ctx context.Context) (settings.RefreshConfig, error) {
	return s.settings.ReadRefreshConfig(ctx)
}

// UpdateRefreshConfig is the operator boundary that writes the shared
// scheduler settings; the running scheduler honors them on its next cycle.
func (s *Rates) UpdateRefreshConfig(ctx context.Context, cfg settings.RefreshConfig) error {
	return s.settings.WriteRefreshConfig(ctx, cfg)
}

func (s *Rates) listForSources(ctx context.Context, from, to time.Time, sources []storage.Source) ([]storage.RateObservation, error) {
	for _, source := range sources {
		if !storage.KnownSource(source) {
			return nil, fmt.Errorf("unknown source %q", source)
		}
	}

	if len(sources) == 1 {
		return s.observations.ListObservations(ctx, from, to, sources[0])
	}

	observations, err := s.observations.ListObservations(ctx, from, to, storage.SourceAny)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return observations, nil
	}

	wanted := make(map[storage.Source]bool, len(sources))
	for _, source := range sources {
		wanted[source] = true
	}

	filtered := observations[:0]
	for _, obs := range observations {
		if wanted[obs.Source] {
			filtered = append(filtered, obs)
		}
	}
	return filtered, nil
}
