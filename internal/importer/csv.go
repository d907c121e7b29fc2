package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// Summary reports the outcome of one bulk import.
type Summary struct {
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
	TotalParsed  int `json:"total_parsed"`
}

// ParseError indicates the document itself is unusable (missing or
// unrecognisable header). Individual bad data rows never raise it; they are
// counted and skipped instead.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "importer: " + e.Reason
}

// Column name aliases accepted in the header row. Banks reorder and rename
// columns between exports, so position is never trusted.
var (
	dateAliases = []string{"date", "rate_date", "day"}
	buyAliases  = []string{"buy", "buy_rate", "buying", "buying_rate"}
	sellAliases = []string{"sell", "sell_rate", "selling", "selling_rate"}
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "02-01-2006", "02/01/2006"}

// Importer parses bank-exported CSV text and upserts the valid rows as one
// transactional batch tagged with the CSV source.
type Importer struct {
	store  storage.ObservationStore
	logger zerolog.Logger
}

// New constructs an Importer.
func New(store storage.ObservationStore, logger zerolog.Logger) *Importer {
	return &Importer{
		store:  store,
		logger: logger.With().Str("component", "csv_importer").Logger(),
	}
}

// Import parses raw CSV text and persists every valid row. The returned
// summary always carries full counts; a store failure rolls back the whole
// batch and is returned alongside a zero success count.
func (i *Importer) Import(ctx context.Context, raw string) (Summary, error) {
	rows, summary, err := Parse(raw)
	if err != nil {
		return Summary{}, err
	}

	if len(rows) == 0 {
		i.logger.Info().Int("total", summary.TotalParsed).Int("errors", summary.ErrorCount).Msg("import finished with no valid rows")
		return summary, nil
	}

	if err := i.store.ImportObservations(ctx, rows); err != nil {
		summary.SuccessCount = 0
		return summary, fmt.Errorf("persist import batch: %w", err)
	}

	i.logger.Info().
		Int("total", summary.TotalParsed).
		Int("imported", summary.SuccessCount).
		Int("errors", summary.ErrorCount).
		Msg("csv import complete")
	return summary, nil
}

// Parse converts CSV text into observations. The first row must name the
// date, buy, and sell columns; data rows that fail conversion are counted as
// errors and skipped.
func Parse(raw string) ([]storage.RateObservation, Summary, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, Summary{}, &ParseError{Reason: fmt.Sprintf("malformed csv: %v", err)}
	}
	if len(records) == 0 {
		return nil, Summary{}, &ParseError{Reason: "empty document"}
	}

	dateCol, buyCol, sellCol, err := resolveHeader(records[0])
	if err != nil {
		return nil, Summary{}, err
	}

	var (
		rows    []storage.RateObservation
		summary Summary
		now     = time.Now().UTC()
	)

	for _, record := range records[1:] {
		summary.TotalParsed++

		obs, ok := parseRow(record, dateCol, buyCol, sellCol, now)
		if !ok {
			summary.ErrorCount++
			continue
		}
		rows = append(rows, obs)
		summary.SuccessCount++
	}

	return rows, summary, nil
}

func resolveHeader(header []string) (dateCol, buyCol, sellCol int, err error) {
	dateCol, buyCol, sellCol = -1, -1, -1
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		switch {
		case matchesAlias(normalized, dateAliases):
			dateCol = i
		case matchesAlias(normalized, buyAliases):
			buyCol = i
		case matchesAlias(normalized, sellAliases):
			sellCol = i
		}
	}
	if dateCol < 0 || buyCol < 0 || sellCol < 0 {
		return 0, 0, 0, &ParseError{Reason: "header must name date, buy, and sell columns"}
	}
	return dateCol, buyCol, sellCol, nil
}

func matchesAlias(name string, aliases []string) bool {
	for _, alias := range aliases {
		if name == alias {
			return true
		}
	}
	return false
}

func parseRow(record []string, dateCol, buyCol, sellCol int, recordedAt time.Time) (storage.RateObservation, bool) {
	if len(record) <= dateCol || len(record) <= buyCol || len(record) <= sellCol {
		return storage.RateObservation{}, false
	}

	date, ok := parseDate(strings.TrimSpace(record[dateCol]))
	if !ok {
		return storage.RateObservation{}, false
	}

	buy, err := decimal.NewFromString(strings.TrimSpace(record[buyCol]))
	if err != nil || buy.Sign() <= 0 {
		return storage.RateObservation{}, false
	}
	sell, err := decimal.NewFromString(strings.TrimSpace(record[sellCol]))
	if err != nil || sell.Sign() <= 0 {
		return storage.RateObservation{}, false
	}

	return storage.RateObservation{
		Date:       date,
		Source:     storage.SourceCSV,
		BuyRate:    buy,
		SellRate:   sell,
		RecordedAt: recordedAt,
	}, true
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return storage.Day(t), true
		}
	}
	return time.Time{}, false
}
