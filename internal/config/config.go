package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/witanage/CW-Budget-sub000/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Settings  SettingsConfig  `mapstructure:"settings"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Providers ProvidersConfig `mapstructure:"providers"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SettingsConfig points at the Redis facility holding operator-tunable state.
type SettingsConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RefreshConfig seeds the scheduler before the first settings read.
type RefreshConfig struct {
	IntervalMinutes int           `mapstructure:"interval_minutes"`
	Mode            string        `mapstructure:"mode"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ProvidersConfig covers external rate providers.
type ProvidersConfig struct {
	Currency string         `mapstructure:"currency"`
	CBSL     ProviderConfig `mapstructure:"cbsl"`
	HNB      ProviderConfig `mapstructure:"hnb"`
	PB       ProviderConfig `mapstructure:"pb"`
}

// ProviderConfig describes one external rate source endpoint.
type ProviderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig tunes the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AlertingConfig routes refresh failure notifications.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram notification channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// ForecastConfig bounds forecast requests.
type ForecastConfig struct {
	DefaultHistoryMonths int `mapstructure:"default_history_months"`
	DefaultHorizonDays   int `mapstructure:"default_horizon_days"`
	MaxHorizonDays       int `mapstructure:"max_horizon_days"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CWBUDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cw-budget-rates")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("settings.addr", "localhost:6379")
	v.SetDefault("settings.db", 0)
	v.SetDefault("settings.key_prefix", "cwbudget")

	v.SetDefault("refresh.interval_minutes", 60)
	v.SetDefault("refresh.mode", "background")
	v.SetDefault("refresh.fetch_timeout", "15s")
	v.SetDefault("refresh.startup_delay", "0s")

	v.SetDefault("providers.currency", "USD")
	v.SetDefault("providers.cbsl.enabled", true)
	v.SetDefault("providers.cbsl.base_url", "https://www.cbsl.gov.lk/cbsl_custom/charts/api")
	v.SetDefault("providers.cbsl.user_agent", "cw-budget-rates/1.0")
	v.SetDefault("providers.hnb.enabled", true)
	v.SetDefault("providers.hnb.base_url", "https://www.hnb.net/exchange-rates")
	v.SetDefault("providers.hnb.user_agent", "cw-budget-rates/1.0")
	v.SetDefault("providers.pb.enabled", true)
	v.SetDefault("providers.pb.base_url", "https://www.peoplesbank.lk/exchange-rates/export")
	v.SetDefault("providers.pb.user_agent", "cw-budget-rates/1.0")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("forecast.default_history_months", 6)
	v.SetDefault("forecast.default_horizon_days", 30)
	v.SetDefault("forecast.max_horizon_days", 365)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Refresh.IntervalMinutes <= 0 {
		return fmt.Errorf("refresh.interval_minutes must be greater than zero")
	}
	if c.Refresh.Mode != "background" && c.Refresh.Mode != "manual" {
		return fmt.Errorf("refresh.mode must be background or manual")
	}
	if c.Refresh.FetchTimeout <= 0 {
		return fmt.Errorf("refresh.fetch_timeout must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Forecast.DefaultHistoryMonths <= 0 {
		return fmt.Errorf("forecast.default_history_months must be greater than zero")
	}
	if c.Forecast.DefaultHorizonDays <= 0 || c.Forecast.DefaultHorizonDays > c.Forecast.MaxHorizonDays {
		return fmt.Errorf("forecast.default_horizon_days must be within (0, max_horizon_days]")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram alerting is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram alerting is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
