package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/witanage/CW-Budget-sub000/internal/api"
	"github.com/witanage/CW-Budget-sub000/internal/scheduler"
	"github.com/witanage/CW-Budget-sub000/internal/service"
)

// Serve runs the long-lived process: the refresh scheduler plus the HTTP API.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn must be configured for serve")
	}
	defer closeStore()

	settingsStore := a.newSettingsStore()
	defer settingsStore.Close()

	seed := a.seedRefreshConfig()
	refresher := service.NewRefresher(service.RefresherOptions{
		FetchTimeout:  a.Config.Refresh.FetchTimeout,
		InitialConfig: seed,
	}, a.newAdapters(), store, store, settingsStore, a.newNotifier(), a.Logger)

	sched := scheduler.New(scheduler.Options{
		InitialInterval: seed.Interval,
		StartupDelay:    a.Config.Refresh.StartupDelay,
	}, a.Logger)

	rates := service.NewRates(store, store, settingsStore, a.Logger)
	router := api.NewRouter(rates, a.Config.Forecast, a.Logger)

	server := &http.Server{
		Addr:         a.Config.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(ctx, refresher.Cycle)
	}()

	serverDone := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", server.Addr).Msg("http server listening")
		serverDone <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("http server terminated")
			cancel()
			<-schedDone
			return err
		}
	case err := <-schedDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("scheduler terminated")
		}
	}

	shutdownTimeout := a.Config.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown failed")
	}

	a.Logger.Info().Msg("service stopped")
	return nil
}
