package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/witanage/CW-Budget-sub000/internal/alerting"
	"github.com/witanage/CW-Budget-sub000/internal/fetcher"
	"github.com/witanage/CW-Budget-sub000/internal/settings"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// RunSummary counts adapter outcomes for one refresh cycle.
type RunSummary struct {
	Succeeded int
	Failed    int
}

// RefresherOptions configure the refresh cycle body.
type RefresherOptions struct {
	FetchTimeout time.Duration
	// InitialConfig seeds the last-known-good settings used when the
	// settings facility is unreachable.
	InitialConfig settings.RefreshConfig
}

// Refresher executes refresh cycles: it re-reads the shared RefreshConfig at
// the top of every cycle, fans the registered adapters out concurrently,
// persists their results, and always appends one attempt log row per source.
//
// Cycle is only ever invoked from the single scheduler goroutine, so the
// last-known-good config needs no locking.
type Refresher struct {
	adapters []fetcher.SourceAdapter
	store    storage.ObservationStore
	logs     storage.RefreshLogStore
	settings settings.Store
	notifier alerting.Notifier
	logger   zerolog.Logger

	fetchTimeout time.Duration
	lastKnown    settings.RefreshConfig
}

// NewRefresher constructs the cycle body. Store, logs, settings, and notifier
// may each be nil: a nil store skips persistence (dry runs), a nil settings
// store pins the initial config, a nil notifier disables alerting.
func NewRefresher(opts RefresherOptions, adapters []fetcher.SourceAdapter, store storage.ObservationStore, logs storage.RefreshLogStore, settingsStore settings.Store, notifier alerting.Notifier, logger zerolog.Logger) *Refresher {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Refresher{
		adapters:     adapters,
		store:        store,
		logs:         logs,
		settings:     settingsStore,
		notifier:     notifier,
		logger:       logger.With().Str("component", "refresher").Logger(),
		fetchTimeout: timeout,
		lastKnown:    opts.InitialConfig,
	}
}

// Cycle runs one scheduler tick and returns the interval for the next one,
// taken from a fresh settings read after the run completes so operator
// changes land within one cycle.
func (r *Refresher) Cycle(ctx context.Context, start time.Time) (time.Duration, error) {
	cfg := r.currentConfig(ctx)

	if cfg.Mode == settings.ModeManual {
		r.logger.Info().Time("cycle", start).Msg("refresh mode is manual; skipping cycle")
		return cfg.Interval, nil
	}

	summary := r.RunAll(ctx, storage.Day(start))
	r.logger.Info().
		Time("cycle", start).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("refresh cycle complete")

	// Mandatory re-read: the next wake time always derives from the most
	// recently read interval, not the one this cycle started with.
	cfg = r.currentConfig(ctx)
	return cfg.Interval, nil
}

// RunAll fans every adapter out concurrently for the given day. Adapter
// failures are contained per source and never abort the cycle.
func (r *Refresher) RunAll(ctx context.Context, day time.Time) RunSummary {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		summary RunSummary
	)

	for _, adapter := range r.adapters {
		wg.Add(1)
		go func(adapter fetcher.SourceAdapter) {
			defer wg.Done()
			err := r.runAdapter(ctx, adapter, day)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
			} else {
				summary.Succeeded++
			}
		}(adapter)
	}

	wg.Wait()
	return summary
}

func (r *Refresher) runAdapter(ctx context.Context, adapter fetcher.SourceAdapter, day time.Time) error {
	source := adapter.Source()
	started := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	observations, err := adapter.Fetch(fetchCtx, day)
	if err == nil && len(observations) == 0 {
		err = &fetcher.FetchError{Source: source, Reason: "adapter returned no observations"}
	}

	if err == nil && r.store != nil {
		for _, obs := range observations {
			if upsertErr := r.store.UpsertObservation(ctx, obs); upsertErr != nil {
				err = fmt.Errorf("persist observation: %w", upsertErr)
				break
			}
		}
	}

	attempt := storage.RefreshAttempt{
		Source:      source,
		Duration:    time.Since(started),
		AttemptedAt: time.Now().UTC(),
	}

	if err != nil {
		msg := err.Error()
		attempt.Status = storage.RefreshStatusFailure
		attempt.ErrorMessage = &msg
		r.logger.Warn().Err(err).Str("source", string(source)).Time("day", day).Msg("source refresh failed")
		r.notifyFailure(ctx, source, day, msg)
	} else {
		first := observations[0]
		buy, sell := first.BuyRate, first.SellRate
		attempt.Status = storage.RefreshStatusSuccess
		attempt.BuyRate = &buy
		attempt.SellRate = &sell
		r.logger.Info().
			Str("source", string(source)).
			Time("day", day).
			Str("buy", buy.String()).
			Str("sell", sell.String()).
			Msg("source refreshed")
	}

	if r.logs != nil {
		if logErr := r.logs.AppendRefreshAttempt(ctx, attempt); logErr != nil {
			r.logger.Error().Err(logErr).Str("source", string(source)).Msg("failed to append refresh attempt")
		}
	}

	return err
}

// currentConfig reads the shared settings fresh. A read failure falls back to
// the last-known-good config instead of stalling the loop.
func (r *Refresher) currentConfig(ctx context.Context) settings.RefreshConfig {
	if r.settings == nil {
		return r.lastKnown
	}

	cfg, err := r.settings.ReadRefreshConfig(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn().Err(err).
				Dur("fallback_interval", r.lastKnown.Interval).
				Msg("settings read failed; using last-known refresh config")
		}
		return r.lastKnown
	}

	r.lastKnown = cfg
	return cfg
}

func (r *Refresher) notifyFailure(ctx context.Context, source storage.Source, day time.Time, reason string) {
	if r.notifier == nil {
		return
	}
	note := alerting.Notification{
		Source:     source,
		CycleStart: day,
		Reason:     reason,
	}
	if err := r.notifier.Notify(ctx, note); err != nil {
		r.logger.Error().Err(err).Str("source", string(source)).Msg("failed to dispatch refresh failure alert")
	}
}
