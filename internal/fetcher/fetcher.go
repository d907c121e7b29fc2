package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

// SourceAdapter turns one provider's response into normalized rate
// observations for a calendar day.
type SourceAdapter interface {
	Source() storage.Source
	Fetch(ctx context.Context, day time.Time) ([]storage.RateObservation, error)
}

// ErrNotAutomatable marks sources that only receive data via CSV import or
// manual entry.
var ErrNotAutomatable = errors.New("fetcher: source has no automatic feed")

// FetchError reports an expected upstream failure (HTTP error, malformed
// payload, empty result). Adapters return it instead of crashing; they never
// retry internally.
type FetchError struct {
	Source storage.Source
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Source, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchErr(source storage.Source, reason string, err error) *FetchError {
	return &FetchError{Source: source, Reason: reason, Err: err}
}
