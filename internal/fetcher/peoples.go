package fetcher

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// PeoplesOptions parameterise the People's Bank adapter.
type PeoplesOptions struct {
	BaseURL   string
	Currency  string
	UserAgent string
}

// Peoples fetches the People's Bank daily rate export, a small CSV document
// with one row per currency.
type Peoples struct {
	opts   PeoplesOptions
	logger zerolog.Logger
	client *http.Client
}

// NewPeoples constructs the People's Bank adapter.
func NewPeoples(opts PeoplesOptions, logger zerolog.Logger) *Peoples {
	return &Peoples{
		opts:   opts,
		logger: logger.With().Str("component", "pb_fetcher").Logger(),
		client: &http.Client{},
	}
}

// Source returns the provider tag.
func (p *Peoples) Source() storage.Source {
	return storage.SourcePB
}

// Fetch downloads and parses the CSV export for the given day.
func (p *Peoples) Fetch(ctx context.Context, day time.Time) ([]storage.RateObservation, error) {
	if p.opts.BaseURL == "" {
		return nil, fetchErr(storage.SourcePB, "base url not configured", nil)
	}

	endpoint := fmt.Sprintf("%s?%s", strings.TrimRight(p.opts.BaseURL, "/"), url.Values{
		"date": []string{storage.Day(day).Format("2006-01-02")},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fetchErr(storage.SourcePB, "build request", err)
	}
	req.Header.Set("Accept", "text/csv")
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fetchErr(storage.SourcePB, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(storage.SourcePB, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fetchErr(storage.SourcePB, "parse csv", err)
	}
	if len(records) < 2 {
		return nil, fetchErr(storage.SourcePB, "empty csv export", nil)
	}

	currencyCol, buyCol, sellCol := -1, -1, -1
	for i, name := range records[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "currency", "currency_code":
			currencyCol = i
		case "buy", "buy_rate", "buying", "buying_rate":
			buyCol = i
		case "sell", "sell_rate", "selling", "selling_rate":
			sellCol = i
		}
	}
	if currencyCol < 0 || buyCol < 0 || sellCol < 0 {
		return nil, fetchErr(storage.SourcePB, "csv header missing currency/buy/sell columns", nil)
	}

	for _, record := range records[1:] {
		if len(record) <= currencyCol || len(record) <= buyCol || len(record) <= sellCol {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(record[currencyCol]), p.currency()) {
			continue
		}

		buy, err := decimal.NewFromString(strings.TrimSpace(record[buyCol]))
		if err != nil {
			return nil, fetchErr(storage.SourcePB, "parse buy rate", err)
		}
		sell, err := decimal.NewFromString(strings.TrimSpace(record[sellCol]))
		if err != nil {
			return nil, fetchErr(storage.SourcePB, "parse sell rate", err)
		}
		if buy.Sign() <= 0 || sell.Sign() <= 0 {
			return nil, fetchErr(storage.SourcePB, "non-positive rate in export", nil)
		}

		obs := storage.RateObservation{
			Date:       storage.Day(day),
			Source:     storage.SourcePB,
			BuyRate:    buy,
			SellRate:   sell,
			RecordedAt: time.Now().UTC(),
		}
		p.logger.Debug().Time("date", obs.Date).Str("buy", buy.String()).Str("sell", sell.String()).Msg("pb rate fetched")
		return []storage.RateObservation{obs}, nil
	}

	return nil, fetchErr(storage.SourcePB, fmt.Sprintf("currency %s absent from export", p.currency()), nil)
}

func (p *Peoples) currency() string {
	if p.opts.Currency != "" {
		return p.opts.Currency
	}
	return "USD"
}

var _ SourceAdapter = (*Peoples)(nil)
