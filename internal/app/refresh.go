package app

import (
	"context"

	"github.com/witanage/CW-Budget-sub000/internal/service"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// Refresh runs every enabled adapter once for the given day. With DryRun set
// nothing is persisted and no attempt rows are written.
func (a *App) Refresh(ctx context.Context, opts RefreshOptions) error {
	var (
		obsStore storage.ObservationStore
		logStore storage.RefreshLogStore
	)

	if opts.DryRun {
		a.Logger.Warn().Msg("dry run: results will not be persisted")
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errNoDatabase
		}
		defer closeStore()
		obsStore = store
		logStore = store
	}

	refresher := service.NewRefresher(service.RefresherOptions{
		FetchTimeout:  a.Config.Refresh.FetchTimeout,
		InitialConfig: a.seedRefreshConfig(),
	}, a.newAdapters(), obsStore, logStore, nil, a.newNotifier(), a.Logger)

	day := storage.Day(opts.Day)
	summary := refresher.RunAll(ctx, day)

	a.Logger.Info().
		Time("day", day).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("one-shot refresh complete")
	return nil
}
