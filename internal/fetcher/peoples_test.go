package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

func TestPeoplesFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("currency,buying_rate,selling_rate\nEUR,330.00,336.50\nUSD,301.90,307.10\n"))
	}))
	defer srv.Close()

	adapter := NewPeoples(PeoplesOptions{BaseURL: srv.URL, Currency: "USD"}, noopLogger())
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	observations, err := adapter.Fetch(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, observations, 1)

	obs := observations[0]
	assert.Equal(t, storage.SourcePB, obs.Source)
	assert.Equal(t, "301.9", obs.BuyRate.String())
	assert.Equal(t, "307.1", obs.SellRate.String())
}

func TestPeoplesFetchMissingColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("code,value\nUSD,300\n"))
	}))
	defer srv.Close()

	adapter := NewPeoples(PeoplesOptions{BaseURL: srv.URL}, noopLogger())

	_, err := adapter.Fetch(context.Background(), time.Now())
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Reason, "header missing")
}

func TestPeoplesFetchEmptyExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("currency,buy,sell\n"))
	}))
	defer srv.Close()

	adapter := NewPeoples(PeoplesOptions{BaseURL: srv.URL}, noopLogger())

	_, err := adapter.Fetch(context.Background(), time.Now())
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Reason, "empty csv export")
}

func TestManualFetchNotAutomatable(t *testing.T) {
	adapter := NewManual(storage.SourceManual)
	assert.Equal(t, storage.SourceManual, adapter.Source())

	_, err := adapter.Fetch(context.Background(), time.Now())
	require.ErrorIs(t, err, ErrNotAutomatable)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, storage.SourceManual, fetchErr.Source)
}
