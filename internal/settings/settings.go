package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RefreshMode selects whether the scheduler runs adapters or skips cycles.
type RefreshMode string

const (
	ModeBackground RefreshMode = "background"
	ModeManual     RefreshMode = "manual"
)

// ParseRefreshMode validates an operator-supplied mode string.
func ParseRefreshMode(value string) (RefreshMode, error) {
	switch RefreshMode(value) {
	case ModeBackground, ModeManual:
		return RefreshMode(value), nil
	}
	return "", fmt.Errorf("settings: unknown refresh mode %q", value)
}

// RefreshConfig is the operator-tunable scheduler state. The scheduler
// re-reads it every cycle; it is never cached across cycles.
type RefreshConfig struct {
	Interval time.Duration
	Mode     RefreshMode
}

// Store reads and writes the shared refresh configuration.
type Store interface {
	ReadRefreshConfig(ctx context.Context) (RefreshConfig, error)
	WriteRefreshConfig(ctx context.Context, cfg RefreshConfig) error
}

const (
	intervalKey = "refresh:interval_minutes"
	modeKey     = "refresh:mode"
)

// RedisStore keeps RefreshConfig in a Redis key-value facility. Missing keys
// fall back to defaults so a fresh deployment works before any operator write.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	defaults RefreshConfig
	logger   zerolog.Logger
}

// Options configure the Redis settings store.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Defaults  RefreshConfig
}

// NewRedisStore connects a settings store. The connection is verified lazily;
// read failures surface per call and the scheduler handles them.
func NewRedisStore(opts Options, logger zerolog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &RedisStore{
		client:   client,
		prefix:   opts.KeyPrefix,
		defaults: opts.Defaults,
		logger:   logger.With().Str("component", "settings").Logger(),
	}
}

// NewRedisStoreWithClient wires an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client, prefix string, defaults RefreshConfig, logger zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, defaults: defaults, logger: logger}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ReadRefreshConfig fetches the current config. Unset keys resolve to the
// configured defaults; transport errors are returned to the caller.
func (s *RedisStore) ReadRefreshConfig(ctx context.Context) (RefreshConfig, error) {
	cfg := s.defaults

	rawInterval, err := s.client.Get(ctx, s.key(intervalKey)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// key unset, keep default
	case err != nil:
		return RefreshConfig{}, fmt.Errorf("read interval setting: %w", err)
	default:
		minutes, convErr := strconv.Atoi(rawInterval)
		if convErr != nil || minutes <= 0 {
			s.logger.Warn().Str("value", rawInterval).Msg("ignoring invalid interval setting")
		} else {
			cfg.Interval = time.Duration(minutes) * time.Minute
		}
	}

	rawMode, err := s.client.Get(ctx, s.key(modeKey)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// key unset, keep default
	case err != nil:
		return RefreshConfig{}, fmt.Errorf("read mode setting: %w", err)
	default:
		mode, parseErr := ParseRefreshMode(rawMode)
		if parseErr != nil {
			s.logger.Warn().Str("value", rawMode).Msg("ignoring invalid mode setting")
		} else {
			cfg.Mode = mode
		}
	}

	return cfg, nil
}

// WriteRefreshConfig persists operator changes. The scheduler picks them up
// on its next cycle without a restart.
func (s *RedisStore) WriteRefreshConfig(ctx context.Context, cfg RefreshConfig) error {
	minutes := int(cfg.Interval / time.Minute)
	if minutes <= 0 {
		return fmt.Errorf("settings: interval must be at least one minute")
	}
	if _, err := ParseRefreshMode(string(cfg.Mode)); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(intervalKey), strconv.Itoa(minutes), 0).Err(); err != nil {
		return fmt.Errorf("write interval setting: %w", err)
	}
	if err := s.client.Set(ctx, s.key(modeKey), string(cfg.Mode), 0).Err(); err != nil {
		return fmt.Errorf("write mode setting: %w", err)
	}

	s.logger.Info().Int("interval_minutes", minutes).Str("mode", string(cfg.Mode)).Msg("refresh config updated")
	return nil
}

func (s *RedisStore) key(suffix string) string {
	if s.prefix == "" {
		return suffix
	}
	return s.prefix + ":" + suffix
}

var _ Store = (*RedisStore)(nil)
