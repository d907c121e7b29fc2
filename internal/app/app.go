package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/witanage/CW-Budget-sub000/internal/alerting"
	"github.com/witanage/CW-Budget-sub000/internal/config"
	"github.com/witanage/CW-Budget-sub000/internal/fetcher"
	"github.com/witanage/CW-Budget-sub000/internal/settings"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newAdapters builds the enabled automatic source adapters. CSV and Manual
// sources have no adapter here; they only receive data through imports.
func (a *App) newAdapters() []fetcher.SourceAdapter {
	providers := a.Config.Providers
	adapters := make([]fetcher.SourceAdapter, 0, 3)

	if providers.CBSL.Enabled {
		adapters = append(adapters, fetcher.NewCBSL(fetcher.CBSLOptions{
			BaseURL:   providers.CBSL.BaseURL,
			Currency:  providers.Currency,
			UserAgent: providers.CBSL.UserAgent,
		}, a.Logger))
	}
	if providers.HNB.Enabled {
		adapters = append(adapters, fetcher.NewHNB(fetcher.HNBOptions{
			BaseURL:   providers.HNB.BaseURL,
			Currency:  providers.Currency,
			UserAgent: providers.HNB.UserAgent,
		}, a.Logger))
	}
	if providers.PB.Enabled {
		adapters = append(adapters, fetcher.NewPeoples(fetcher.PeoplesOptions{
			BaseURL:   providers.PB.BaseURL,
			Currency:  providers.Currency,
			UserAgent: providers.PB.UserAgent,
		}, a.Logger))
	}

	return adapters
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newSettingsStore() *settings.RedisStore {
	return settings.NewRedisStore(settings.Options{
		Addr:      a.Config.Settings.Addr,
		Password:  a.Config.Settings.Password,
		DB:        a.Config.Settings.DB,
		KeyPrefix: a.Config.Settings.KeyPrefix,
		Defaults:  a.seedRefreshConfig(),
	}, a.Logger)
}

func (a *App) seedRefreshConfig() settings.RefreshConfig {
	mode := settings.ModeBackground
	if parsed, err := settings.ParseRefreshMode(a.Config.Refresh.Mode); err == nil {
		mode = parsed
	}
	return settings.RefreshConfig{
		Interval: time.Duration(a.Config.Refresh.IntervalMinutes) * time.Minute,
		Mode:     mode,
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		pool.Close()
	}
	return store, closer, nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ImportOptions configure the CSV import command.
type ImportOptions struct {
	Path string
}

// RefreshOptions configure the one-shot refresh command.
type RefreshOptions struct {
	Day    time.Time
	DryRun bool
}

// TrendsOptions configure the trends command.
type TrendsOptions struct {
	Period  string
	Months  int
	Sources []string
}

// ForecastOptions configure the forecast command.
type ForecastOptions struct {
	HistoryMonths int
	HorizonDays   int
}

// ExportOptions hold parameters for exporting historical observations.
type ExportOptions struct {
	From         *time.Time
	To           *time.Time
	PNGPath      string
	CSVPath      string
	MaxPoints    int
	ForecastDays int
}
