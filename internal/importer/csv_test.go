package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

type fakeObservationStore struct {
	imported  []storage.RateObservation
	importErr error
}

func (f *fakeObservationStore) UpsertObservation(ctx context.Context, obs storage.RateObservation) error {
	return nil
}

func (f *fakeObservationStore) GetObservation(ctx context.Context, day time.Time, source storage.Source) (storage.RateObservation, error) {
	return storage.RateObservation{}, storage.ErrNotFound
}

func (f *fakeObservationStore) GetObservationWithFallback(ctx context.Context, day time.Time, source storage.Source) (storage.ResolvedRate, error) {
	return storage.ResolvedRate{}, storage.ErrNotFound
}

func (f *fakeObservationStore) ListObservations(ctx context.Context, from, to time.Time, source storage.Source) ([]storage.RateObservation, error) {
	return nil, nil
}

func (f *fakeObservationStore) ListRecentObservations(ctx context.Context, limit int) ([]storage.RateObservation, error) {
	return nil, nil
}

func (f *fakeObservationStore) ImportObservations(ctx context.Context, observations []storage.RateObservation) error {
	if f.importErr != nil {
		return f.importErr
	}
	f.imported = append(f.imported, observations...)
	return nil
}

func (f *fakeObservationStore) CountObservations(ctx context.Context) (int64, error) {
	return int64(len(f.imported)), nil
}

func TestParseCountsBadRows(t *testing.T) {
	raw := "date,buy_rate,sell_rate\n" +
		"2025-01-01,300.50,305.10\n" +
		"2025-01-02,301.00,306.00\n" +
		"2025-01-03,not-a-number,307.00\n" +
		"2025-01-04,302.25,307.40\n"

	rows, summary, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, 4, summary.TotalParsed)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Equal(t, storage.SourceCSV, row.Source)
	}
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, "300.5", rows[0].BuyRate.String())
}

func TestParseHeaderByNameNotPosition(t *testing.T) {
	raw := "selling_rate,date,buying\n" +
		"306.00,2025-02-01,301.00\n"

	rows, summary, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, "301", rows[0].BuyRate.String())
	assert.Equal(t, "306", rows[0].SellRate.String())
}

func TestParseAlternateDateLayouts(t *testing.T) {
	raw := "date,buy,sell\n" +
		"2025/01/05,300,305\n" +
		"06-01-2025,301,306\n" +
		"07/01/2025,302,307\n"

	rows, summary, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SuccessCount)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), rows[1].Date)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), rows[2].Date)
}

func TestParseRejectsUnusableHeader(t *testing.T) {
	_, _, err := Parse("timestamp,value\n2025-01-01,300\n")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "header")
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, _, err := Parse("")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseSkipsNonPositiveRates(t *testing.T) {
	raw := "date,buy,sell\n" +
		"2025-01-01,0,305\n" +
		"2025-01-02,-5,305\n" +
		"2025-01-03,300,305\n"

	_, summary, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 2, summary.ErrorCount)
}

func TestImportPersistsBatch(t *testing.T) {
	store := &fakeObservationStore{}
	imp := New(store, zerolog.Nop())

	summary, err := imp.Import(context.Background(), "date,buy,sell\n2025-01-01,300,305\n2025-01-02,301,306\n")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SuccessCount)
	assert.Len(t, store.imported, 2)
}

func TestImportStoreFailureZeroesSuccess(t *testing.T) {
	store := &fakeObservationStore{importErr: errors.New("connection reset")}
	imp := New(store, zerolog.Nop())

	summary, err := imp.Import(context.Background(), "date,buy,sell\n2025-01-01,300,305\n")
	require.Error(t, err)

	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, 1, summary.TotalParsed)
	assert.Empty(t, store.imported)
}
