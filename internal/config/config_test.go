package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "cw-budget-rates", cfg.App.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 60, cfg.Refresh.IntervalMinutes)
	assert.Equal(t, "background", cfg.Refresh.Mode)
	assert.Equal(t, 15*time.Second, cfg.Refresh.FetchTimeout)
	assert.Equal(t, "USD", cfg.Providers.Currency)
	assert.True(t, cfg.Providers.CBSL.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 6, cfg.Forecast.DefaultHistoryMonths)
	assert.Equal(t, 365, cfg.Forecast.MaxHorizonDays)
	assert.False(t, cfg.Alerting.Enabled)
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
app:
  environment: production
refresh:
  interval_minutes: 15
  mode: manual
  fetch_timeout: 5s
settings:
  addr: redis.internal:6379
  key_prefix: rates
providers:
  hnb:
    enabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, 15, cfg.Refresh.IntervalMinutes)
	assert.Equal(t, "manual", cfg.Refresh.Mode)
	assert.Equal(t, 5*time.Second, cfg.Refresh.FetchTimeout)
	assert.Equal(t, "redis.internal:6379", cfg.Settings.Addr)
	assert.Equal(t, "rates", cfg.Settings.KeyPrefix)
	assert.False(t, cfg.Providers.HNB.Enabled)
	assert.True(t, cfg.Providers.CBSL.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero interval": `
refresh:
  interval_minutes: 0
`,
		"unknown mode": `
refresh:
  mode: turbo
`,
		"horizon above max": `
forecast:
  default_horizon_days: 400
`,
		"telegram without token": `
alerting:
  telegram:
    enabled: true
    chat_id: "123"
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Refresh.IntervalMinutes)
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 100000}}

	assert.Equal(t, 100000, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 500, cfg.ResolveMaxPoints(500))
}
