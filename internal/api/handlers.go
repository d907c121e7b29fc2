package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/witanage/CW-Budget-sub000/internal/analytics"
	"github.com/witanage/CW-Budget-sub000/internal/config"
	"github.com/witanage/CW-Budget-sub000/internal/importer"
	"github.com/witanage/CW-Budget-sub000/internal/settings"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// RateService is the slice of the rate service the HTTP surface depends on.
type RateService interface {
	Rate(ctx context.Context, date time.Time, source storage.Source) (storage.ResolvedRate, error)
	ImportCSV(ctx context.Context, raw string) (importer.Summary, error)
	Trends(ctx context.Context, granularity analytics.Granularity, months int, sources []storage.Source) ([]analytics.AggregatedPeriod, error)
	ForecastRates(ctx context.Context, historyMonths, horizonDays int) (analytics.ForecastResult, error)
	RefreshAttempts(ctx context.Context, limit int) ([]storage.RefreshAttempt, error)
	RefreshConfig(ctx context.Context) (settings.RefreshConfig, error)
	UpdateRefreshConfig(ctx context.Context, cfg settings.RefreshConfig) error
}

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	svc      RateService
	forecast config.ForecastConfig
	logger   zerolog.Logger
}

// NewHandlers constructs the handler set.
func NewHandlers(svc RateService, forecast config.ForecastConfig, logger zerolog.Logger) *Handlers {
	return &Handlers{
		svc:      svc,
		forecast: forecast,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type rateResponse struct {
	RequestedDate string `json:"requested_date"`
	Date          string `json:"date"`
	Source        string `json:"source"`
	BuyRate       string `json:"buy_rate"`
	SellRate      string `json:"sell_rate"`
	MidRate       string `json:"mid_rate"`
	Fallback      bool   `json:"fallback"`
}

// GetRate resolves a single rate, falling back to the nearest earlier date.
func (h *Handlers) GetRate(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		return
	}

	source := storage.Source(c.Query("source"))
	if source != storage.SourceAny && !storage.KnownSource(source) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source"})
		return
	}

	resolved, err := h.svc.Rate(c.Request.Context(), date, source)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no rate at or before the requested date"})
			return
		}
		h.fail(c, err)
		return
	}

	obs := resolved.Observation
	c.JSON(http.StatusOK, rateResponse{
		RequestedDate: resolved.RequestedDate.Format("2006-01-02"),
		Date:          obs.Date.Format("2006-01-02"),
		Source:        string(obs.Source),
		BuyRate:       obs.BuyRate.String(),
		SellRate:      obs.SellRate.String(),
		MidRate:       obs.MidRate().String(),
		Fallback:      resolved.Fallback,
	})
}

// ImportCSV accepts raw CSV text in the request body and bulk-upserts it.
func (h *Handlers) ImportCSV(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	summary, err := h.svc.ImportCSV(c.Request.Context(), string(raw))
	if err != nil {
		var parseErr *importer.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": parseErr.Error()})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetTrends returns aggregated period buckets over the trailing months.
func (h *Handlers) GetTrends(c *gin.Context) {
	granularity, err := analytics.ParseGranularity(c.DefaultQuery("period", string(analytics.GranularityDaily)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	months, ok := parseIntParam(c, "months", 3)
	if !ok {
		return
	}

	var sources []storage.Source
	if raw := c.Query("sources"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			source := storage.Source(strings.TrimSpace(part))
			if !storage.KnownSource(source) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source"})
				return
			}
			sources = append(sources, source)
		}
	}

	periods, err := h.svc.Trends(c.Request.Context(), granularity, months, sources)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period": granularity, "months": months, "buckets": periods})
}

// GetForecast projects future mid-rates with a confidence band.
func (h *Handlers) GetForecast(c *gin.Context) {
	months, ok := parseIntParam(c, "months", h.forecast.DefaultHistoryMonths)
	if !ok {
		return
	}
	days, ok := parseIntParam(c, "days", h.forecast.DefaultHorizonDays)
	if !ok {
		return
	}
	if h.forecast.MaxHorizonDays > 0 && days > h.forecast.MaxHorizonDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days exceeds the maximum forecast horizon"})
		return
	}

	result, err := h.svc.ForecastRates(c.Request.Context(), months, days)
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientData) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not enough history to fit a trend"})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type refreshAttemptResponse struct {
	Source       string  `json:"source"`
	Status       string  `json:"status"`
	BuyRate      *string `json:"buy_rate,omitempty"`
	SellRate     *string `json:"sell_rate,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	DurationMS   int64   `json:"duration_ms"`
	AttemptedAt  string  `json:"attempted_at"`
}

// ListRefreshAttempts exposes the scheduler's attempt log for monitoring.
func (h *Handlers) ListRefreshAttempts(c *gin.Context) {
	limit, ok := parseIntParam(c, "limit", 50)
	if !ok {
		return
	}

	attempts, err := h.svc.RefreshAttempts(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]refreshAttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		resp := refreshAttemptResponse{
			Source:       string(attempt.Source),
			Status:       attempt.Status,
			ErrorMessage: attempt.ErrorMessage,
			DurationMS:   attempt.Duration.Milliseconds(),
			AttemptedAt:  attempt.AttemptedAt.UTC().Format(time.RFC3339),
		}
		if attempt.BuyRate != nil {
			buy := attempt.BuyRate.String()
			resp.BuyRate = &buy
		}
		if attempt.SellRate != nil {
			sell := attempt.SellRate.String()
			resp.SellRate = &sell
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{"attempts": out})
}

type refreshConfigPayload struct {
	IntervalMinutes int    `json:"interval_minutes"`
	Mode            string `json:"mode"`
}

// GetRefreshConfig reads the operator-tunable scheduler settings.
func (h *Handlers) GetRefreshConfig(c *gin.Context) {
	cfg, err := h.svc.RefreshConfig(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, refreshConfigPayload{
		IntervalMinutes: int(cfg.Interval / time.Minute),
		Mode:            string(cfg.Mode),
	})
}

// UpdateRefreshConfig writes new scheduler settings. The running scheduler
// honors them on its next cycle without a restart.
func (h *Handlers) UpdateRefreshConfig(c *gin.Context) {
	var payload refreshConfigPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json payload"})
		return
	}
	if payload.IntervalMinutes <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval_minutes must be greater than zero"})
		return
	}
	mode, err := settings.ParseRefreshMode(payload.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := settings.RefreshConfig{
		Interval: time.Duration(payload.IntervalMinutes) * time.Minute,
		Mode:     mode,
	}
	if err := h.svc.UpdateRefreshConfig(c.Request.Context(), cfg); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payload)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseDateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " query parameter is required"})
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be formatted YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

func parseIntParam(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return value, true
}
