package fetcher

import (
	"context"
	"time"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// Manual is the degenerate adapter for sources that only receive data through
// CSV import or operator entry. Fetch always reports ErrNotAutomatable so the
// scheduler never schedules it.
type Manual struct {
	source storage.Source
}

// NewManual constructs a non-automatable adapter for the given source tag.
func NewManual(source storage.Source) *Manual {
	return &Manual{source: source}
}

// Source returns the provider tag.
func (m *Manual) Source() storage.Source {
	return m.source
}

// Fetch always fails with ErrNotAutomatable.
func (m *Manual) Fetch(ctx context.Context, day time.Time) ([]storage.RateObservation, error) {
	return nil, fetchErr(m.source, "no automatic feed", ErrNotAutomatable)
}

var _ SourceAdapter = (*Manual)(nil)
