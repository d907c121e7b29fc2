package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// HNBOptions parameterise the Hatton National Bank adapter.
type HNBOptions struct {
	BaseURL   string
	Currency  string
	UserAgent string
}

// HNB scrapes the HNB exchange-rate page. The page carries one table row per
// currency: code, buying rate, selling rate. The bank occasionally serves a
// bot-challenge page instead, which surfaces here as a FetchError.
type HNB struct {
	opts   HNBOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHNB constructs the HNB adapter.
func NewHNB(opts HNBOptions, logger zerolog.Logger) *HNB {
	return &HNB{
		opts:   opts,
		logger: logger.With().Str("component", "hnb_fetcher").Logger(),
		client: &http.Client{},
	}
}

// Source returns the provider tag.
func (h *HNB) Source() storage.Source {
	return storage.SourceHNB
}

// Fetch scrapes the current page. HNB publishes today's rates only, so the
// observation is always dated to the requested day.
func (h *HNB) Fetch(ctx context.Context, day time.Time) ([]storage.RateObservation, error) {
	if h.opts.BaseURL == "" {
		return nil, fetchErr(storage.SourceHNB, "base url not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.BaseURL, nil)
	if err != nil {
		return nil, fetchErr(storage.SourceHNB, "build request", err)
	}
	req.Header.Set("Accept", "text/html")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fetchErr(storage.SourceHNB, "request failed", err)
	}
	defer resp.Body.Close()

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(storage.SourceHNB, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(storage.SourceHNB, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	buy, sell, err := parseRateTable(string(page), h.currency())
	if err != nil {
		return nil, fetchErr(storage.SourceHNB, "parse rate table", err)
	}

	obs := storage.RateObservation{
		Date:       storage.Day(day),
		Source:     storage.SourceHNB,
		BuyRate:    buy,
		SellRate:   sell,
		RecordedAt: time.Now().UTC(),
	}
	h.logger.Debug().Time("date", obs.Date).Str("buy", buy.String()).Str("sell", sell.String()).Msg("hnb rate scraped")
	return []storage.RateObservation{obs}, nil
}

func (h *HNB) currency() string {
	if h.opts.Currency != "" {
		return h.opts.Currency
	}
	return "USD"
}

// parseRateTable walks the HTML table rows looking for the currency code and
// reads the two numeric cells that follow it.
func parseRateTable(page, currency string) (decimal.Decimal, decimal.Decimal, error) {
	for _, row := range strings.Split(page, "<tr") {
		fields := strings.Fields(stripTags(row))
		if len(fields) < 3 {
			continue
		}
		if !strings.EqualFold(fields[0], currency) {
			continue
		}

		buy, err := decimal.NewFromString(strings.ReplaceAll(fields[1], ",", ""))
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("buying rate %q: %w", fields[1], err)
		}
		sell, err := decimal.NewFromString(strings.ReplaceAll(fields[2], ",", ""))
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("selling rate %q: %w", fields[2], err)
		}
		if buy.Sign() <= 0 || sell.Sign() <= 0 {
			return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("non-positive rate for %s", currency)
		}
		return buy, sell, nil
	}
	return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("currency %s not present in page", currency)
}

func stripTags(fragment string) string {
	var builder strings.Builder
	inTag := false
	for _, r := range fragment {
		switch {
		case r == '<':
			inTag = true
			builder.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

var _ SourceAdapter = (*HNB)(nil)
