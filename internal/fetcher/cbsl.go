package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

const cbslRatesPath = "/exchange-rates"

// CBSLOptions parameterise the Central Bank adapter.
type CBSLOptions struct {
	BaseURL   string
	Currency  string
	UserAgent string
}

// CBSL fetches indicative rates from the Central Bank of Sri Lanka JSON API.
type CBSL struct {
	opts    CBSLOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCBSL constructs the CBSL adapter.
func NewCBSL(opts CBSLOptions, logger zerolog.Logger) *CBSL {
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	return &CBSL{
		opts:    opts,
		logger:  logger.With().Str("component", "cbsl_fetcher").Logger(),
		client:  &http.Client{},
		baseURL: baseURL,
	}
}

// Source returns the provider tag.
func (c *CBSL) Source() storage.Source {
	return storage.SourceCBSL
}

// Fetch retrieves the buy/sell quote for the given day.
func (c *CBSL) Fetch(ctx context.Context, day time.Time) ([]storage.RateObservation, error) {
	if c.baseURL == "" {
		return nil, fetchErr(storage.SourceCBSL, "base url not configured", nil)
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, cbslRatesPath, url.Values{
		"date":     []string{storage.Day(day).Format("2006-01-02")},
		"currency": []string{c.currency()},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fetchErr(storage.SourceCBSL, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fetchErr(storage.SourceCBSL, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(storage.SourceCBSL, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(storage.SourceCBSL, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var body cbslResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fetchErr(storage.SourceCBSL, "decode payload", err)
	}

	for _, entry := range body.Rates {
		if !strings.EqualFold(entry.Currency, c.currency()) {
			continue
		}

		buy, err := decimal.NewFromString(entry.Buy)
		if err != nil {
			return nil, fetchErr(storage.SourceCBSL, "parse buy rate", err)
		}
		sell, err := decimal.NewFromString(entry.Sell)
		if err != nil {
			return nil, fetchErr(storage.SourceCBSL, "parse sell rate", err)
		}
		if buy.Sign() <= 0 || sell.Sign() <= 0 {
			return nil, fetchErr(storage.SourceCBSL, "non-positive rate in payload", nil)
		}

		obs := storage.RateObservation{
			Date:       storage.Day(day),
			Source:     storage.SourceCBSL,
			BuyRate:    buy,
			SellRate:   sell,
			RecordedAt: time.Now().UTC(),
		}
		c.logger.Debug().Time("date", obs.Date).Str("buy", buy.String()).Str("sell", sell.String()).Msg("cbsl rate fetched")
		return []storage.RateObservation{obs}, nil
	}

	return nil, fetchErr(storage.SourceCBSL, fmt.Sprintf("currency %s absent from payload", c.currency()), nil)
}

func (c *CBSL) currency() string {
	if c.opts.Currency != "" {
		return c.opts.Currency
	}
	return "USD"
}

type cbslResponse struct {
	Date  string `json:"date"`
	Rates []struct {
		Currency string `json:"currency"`
		Buy      string `json:"buy_rate"`
		Sell     string `json:"sell_rate"`
	} `json:"rates"`
}

var _ SourceAdapter = (*CBSL)(nil)
