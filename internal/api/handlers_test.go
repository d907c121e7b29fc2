package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/witanage/CW-Budget-sub000/internal/analytics"
	"github.com/witanage/CW-Budget-sub000/internal/config"
	"github.com/witanage/CW-Budget-sub000/internal/importer"
	"github.com/witanage/CW-Budget-sub000/internal/settings"
	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// fakeService scripts each RateService method for handler tests.
type fakeService struct {
	rate       storage.ResolvedRate
	rateErr    error
	rateSource storage.Source

	importSummary importer.Summary
	importErr     error

	trends    []analytics.AggregatedPeriod
	trendsErr error

	forecast       analytics.ForecastResult
	forecastErr    error
	forecastMonths int
	forecastDays   int

	attempts []storage.RefreshAttempt

	refreshCfg settings.RefreshConfig
	updatedCfg *settings.RefreshConfig
}

func (f *fakeService) Rate(ctx context.Context, date time.Time, source storage.Source) (storage.ResolvedRate, error) {
	f.rateSource = source
	return f.rate, f.rateErr
}

func (f *fakeService) ImportCSV(ctx context.Context, raw string) (importer.Summary, error) {
	return f.importSummary, f.importErr
}

func (f *fakeService) Trends(ctx context.Context, granularity analytics.Granularity, months int, sources []storage.Source) ([]analytics.AggregatedPeriod, error) {
	return f.trends, f.trendsErr
}

func (f *fakeService) ForecastRates(ctx context.Context, historyMonths, horizonDays int) (analytics.ForecastResult, error) {
	f.forecastMonths = historyMonths
	f.forecastDays = horizonDays
	return f.forecast, f.forecastErr
}

func (f *fakeService) RefreshAttempts(ctx context.Context, limit int) ([]storage.RefreshAttempt, error) {
	return f.attempts, nil
}

func (f *fakeService) RefreshConfig(ctx context.Context) (settings.RefreshConfig, error) {
	return f.refreshCfg, nil
}

func (f *fakeService) UpdateRefreshConfig(ctx context.Context, cfg settings.RefreshConfig) error {
	f.updatedCfg = &cfg
	return nil
}

func forecastLimits() config.ForecastConfig {
	return config.ForecastConfig{DefaultHistoryMonths: 3, DefaultHorizonDays: 7, MaxHorizonDays: 30}
}

func serve(t *testing.T, svc RateService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	router := NewRouter(svc, forecastLimits(), zerolog.Nop())
	recorder := httptest.NewRecorder()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return payload
}

func TestHealthz(t *testing.T) {
	recorder := serve(t, &fakeService{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestGetRateSuccess(t *testing.T) {
	date := time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC)
	svc := &fakeService{rate: storage.ResolvedRate{
		Observation: storage.RateObservation{
			Date:     date,
			Source:   storage.SourceCBSL,
			BuyRate:  decimal.RequireFromString("300.50"),
			SellRate: decimal.RequireFromString("306.10"),
		},
		RequestedDate: date.AddDate(0, 0, 2),
		Fallback:      true,
	}}

	recorder := serve(t, svc, http.MethodGet, "/api/v1/rates?date=2025-05-11&source=CBSL", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, "2025-05-11", body["requested_date"])
	assert.Equal(t, "2025-05-09", body["date"])
	assert.Equal(t, "CBSL", body["source"])
	assert.Equal(t, "300.5", body["buy_rate"])
	assert.Equal(t, "303.3", body["mid_rate"])
	assert.Equal(t, true, body["fallback"])
	assert.Equal(t, storage.SourceCBSL, svc.rateSource)
}

func TestGetRateRequiresDate(t *testing.T) {
	recorder := serve(t, &fakeService{}, http.MethodGet, "/api/v1/rates", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetRateRejectsBadDate(t *testing.T) {
	recorder := serve(t, &fakeService{}, http.MethodGet, "/api/v1/rates?date=11-05-2025", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetRateRejectsUnknownSource(t *testing.T) {
	recorder := serve(t, &fakeService{}, http.MethodGet, "/api/v1/rates?date=2025-05-11&source=NSB", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetRateNotFound(t *testing.T) {
	svc := &fakeService{rateErr: storage.ErrNotFound}

	recorder := serve(t, svc, http.MethodGet, "/api/v1/rates?date=2025-05-11", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestImportCSVSuccess(t *testing.T) {
	svc := &fakeService{importSummary: importer.Summary{SuccessCount: 3, ErrorCount: 1, TotalParsed: 4}}

	recorder := serve(t, svc, http.MethodPost, "/api/v1/rates/import", "date,buy,sell\n2025-01-01,300,305\n")
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, float64(3), body["success_count"])
	assert.Equal(t, float64(1), body["error_count"])
	assert.Equal(t, float64(4), body["total_parsed"])
}

func TestImportCSVUnusableDocument(t *testing.T) {
	svc := &fakeService{importErr: &importer.ParseError{Reason: "header must name date, buy, and sell columns"}}

	recorder := serve(t, svc, http.MethodPost, "/api/v1/rates/import", "garbage")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetTrendsRejectsBadPeriod(t *testing.T) {
	recorder := serve(t, &fakeService{}, http.MethodGet, "/api/v1/rates/trends?period=hourly", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetTrendsRejectsUnknownSource(t *testing.T) {
	recorder := serve(t, &fakeService{}, http.MethodGet, "/api/v1/rates/trends?sources=CBSL,NSB", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetTrendsSuccess(t *testing.T) {
	svc := &fakeService{trends: []analytics.AggregatedPeriod{{
		PeriodStart: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		AvgBuyRate:  decimal.RequireFromString("301"),
		AvgSellRate: decimal.RequireFromString("307"),
		MidRate:     decimal.RequireFromString("304"),
		SampleCount: 20,
	}}}

	recorder := serve(t, svc, http.MethodGet, "/api/v1/rates/trends?period=monthly&months=6", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, "monthly", body["period"])
	assert.Equal(t, float64(6), body["months"])
	buckets, ok := body["buckets"].([]any)
	require.True(t, ok)
	assert.Len(t, buckets, 1)
}

func TestGetForecastUsesConfiguredDefaults(t *testing.T) {
	svc := &fakeService{forecast: analytics.ForecastResult{Model: analytics.ForecastModel{DataPoints: 10}}}

	recorder := serve(t, svc, http.MethodGet, "/api/v1/rates/forecast", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	assert.Equal(t, 3, svc.forecastMonths)
	assert.Equal(t, 7, svc.forecastDays)
}

func TestGetForecastCapsHorizon(t *testing.T) {
	recorder := serve(t, &fakeService{}, http.MethodGet, "/api/v1/rates/forecast?days=90", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetForecastInsufficientData(t *testing.T) {
	svc := &fakeService{forecastErr: analytics.ErrInsufficientData}

	recorder := serve(t, svc, http.MethodGet, "/api/v1/rates/forecast", "")
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestListRefreshAttempts(t *testing.T) {
	buy := decimal.RequireFromString("300.5")
	msg := "blocked"
	svc := &fakeService{attempts: []storage.RefreshAttempt{
		{Source: storage.SourceCBSL, Status: storage.RefreshStatusSuccess, BuyRate: &buy, Duration: 842 * time.Millisecond, AttemptedAt: time.Now()},
		{Source: storage.SourceHNB, Status: storage.RefreshStatusFailure, ErrorMessage: &msg, Duration: 120 * time.Millisecond, AttemptedAt: time.Now()},
	}}

	recorder := serve(t, svc, http.MethodGet, "/api/v1/refresh/attempts", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	attempts, ok := body["attempts"].([]any)
	require.True(t, ok)
	require.Len(t, attempts, 2)

	first, ok := attempts[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", first["status"])
	assert.Equal(t, "300.5", first["buy_rate"])
	assert.Equal(t, float64(842), first["duration_ms"])
}

func TestGetRefreshConfig(t *testing.T) {
	svc := &fakeService{refreshCfg: settings.RefreshConfig{Interval: 45 * time.Minute, Mode: settings.ModeBackground}}

	recorder := serve(t, svc, http.MethodGet, "/api/v1/refresh/config", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, float64(45), body["interval_minutes"])
	assert.Equal(t, "background", body["mode"])
}

func TestUpdateRefreshConfig(t *testing.T) {
	svc := &fakeService{}

	recorder := serve(t, svc, http.MethodPut, "/api/v1/refresh/config", `{"interval_minutes":15,"mode":"manual"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	require.NotNil(t, svc.updatedCfg)
	assert.Equal(t, 15*time.Minute, svc.updatedCfg.Interval)
	assert.Equal(t, settings.ModeManual, svc.updatedCfg.Mode)
}

func TestUpdateRefreshConfigValidation(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{"interval_minutes":`,
		"zero interval":  `{"interval_minutes":0,"mode":"background"}`,
		"unknown mode":   `{"interval_minutes":10,"mode":"turbo"}`,
		"negative value": `{"interval_minutes":-5,"mode":"manual"}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{}
			recorder := serve(t, svc, http.MethodPut, "/api/v1/refresh/config", payload)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Nil(t, svc.updatedCfg)
		})
	}
}
