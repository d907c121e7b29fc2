package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies the provider a rate observation came from.
type Source string

const (
	SourceCBSL   Source = "CBSL"
	SourceHNB    Source = "HNB"
	SourcePB     Source = "PB"
	SourceCSV    Source = "CSV"
	SourceManual Source = "Manual"
	SourceAny    Source = ""
)

// SourcePriority orders providers for lookups that do not name a source.
// Earlier entries win when several sources carry the same date.
var SourcePriority = []Source{SourceCBSL, SourceHNB, SourcePB, SourceCSV, SourceManual}

// KnownSource reports whether s is one of the registered provider tags.
func KnownSource(s Source) bool {
	for _, known := range SourcePriority {
		if s == known {
			return true
		}
	}
	return false
}

// RateObservation is one buy/sell quote for a calendar day from one source.
// The (Date, Source) pair is the identity key; re-ingesting the same key
// replaces the whole row.
type RateObservation struct {
	Date       time.Time
	Source     Source
	BuyRate    decimal.Decimal
	SellRate   decimal.Decimal
	RecordedAt time.Time
}

// MidRate is the average of buy and sell.
func (o RateObservation) MidRate() decimal.Decimal {
	return o.BuyRate.Add(o.SellRate).Div(decimal.NewFromInt(2))
}

// ResolvedRate wraps an observation together with the date the caller asked
// for, so a nearest-prior-date substitution can be flagged to the user.
type ResolvedRate struct {
	Observation   RateObservation
	RequestedDate time.Time
	Fallback      bool
}

// RefreshAttempt records the outcome of one adapter invocation within a
// scheduler cycle. Rows are append-only.
type RefreshAttempt struct {
	ID           int64
	Source       Source
	Status       string
	BuyRate      *decimal.Decimal
	SellRate     *decimal.Decimal
	ErrorMessage *string
	Duration     time.Duration
	AttemptedAt  time.Time
}

const (
	RefreshStatusSuccess = "success"
	RefreshStatusFailure = "failure"
)

// Day truncates t to its calendar day in UTC. All observation dates are
// stored at this granularity.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
