package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates no observation exists at or before the requested date.
	ErrNotFound = errors.New("storage: rate observation not found")
)

const (
	upsertObservationSQL = `INSERT INTO rate_observations (
        rate_date,
        source,
        buy_rate,
        sell_rate,
        recorded_at
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (rate_date, source) DO UPDATE
    SET
        buy_rate    = EXCLUDED.buy_rate,
        sell_rate   = EXCLUDED.sell_rate,
        recorded_at = EXCLUDED.recorded_at;`

	getObservationSQL = `SELECT
        rate_date, source, buy_rate, sell_rate, recorded_at
    FROM rate_observations
    WHERE rate_date = $1
      AND ($2 = '' OR source = $2)
    ORDER BY array_position($3::text[], source)
    LIMIT 1;`

	fallbackObservationSQL = `SELECT
        rate_date, source, buy_rate, sell_rate, recorded_at
    FROM rate_observations
    WHERE rate_date <= $1
      AND ($2 = '' OR source = $2)
    ORDER BY rate_date DESC, array_position($3::text[], source)
    LIMIT 1;`

	listObservationsSQL = `SELECT
        rate_date, source, buy_rate, sell_rate, recorded_at
    FROM rate_observations
    WHERE rate_date >= $1
      AND rate_date <= $2
      AND ($3 = '' OR source = $3)
    ORDER BY rate_date, array_position($4::text[], source);`

	listRecentObservationsSQL = `SELECT
        rate_date, source, buy_rate, sell_rate, recorded_at
    FROM rate_observations
    ORDER BY rate_date DESC, array_position($2::text[], source)
    LIMIT $1;`

	countObservationsSQL = `SELECT COUNT(*) FROM rate_observations;`

	appendRefreshAttemptSQL = `INSERT INTO refresh_attempts (
        source,
        status,
        buy_rate,
        sell_rate,
        error_message,
        duration_ms,
        attempted_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	listRecentRefreshAttemptsSQL = `SELECT
        id, source, status, buy_rate, sell_rate, error_message, duration_ms, attempted_at
    FROM refresh_attempts
    ORDER BY attempted_at DESC, id DESC
    LIMIT $1;`
)

// ObservationStore defines operations for rate observation persistence.
type ObservationStore interface {
	UpsertObservation(ctx context.Context, obs RateObservation) error
	GetObservation(ctx context.Context, date time.Time, source Source) (RateObservation, error)
	GetObservationWithFallback(ctx context.Context, date time.Time, source Source) (ResolvedRate, error)
	ListObservations(ctx context.Context, from, to time.Time, source Source) ([]RateObservation, error)
	ListRecentObservations(ctx context.Context, limit int) ([]RateObservation, error)
	ImportObservations(ctx context.Context, obs []RateObservation) error
	CountObservations(ctx context.Context) (int64, error)
}

// RefreshLogStore defines operations for the append-only refresh attempt log.
type RefreshLogStore interface {
	AppendRefreshAttempt(ctx context.Context, attempt RefreshAttempt) error
	ListRecentRefreshAttempts(ctx context.Context, limit int) ([]RefreshAttempt, error)
}

// DB is the slice of pgxpool.Pool behaviour the store depends on. Tests
// substitute a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store provides access to rate observations and refresh attempt logs.
type Store struct {
	db DB
}

// NewStore wires a pgx pool (or compatible connection) into a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) getDB() (DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

func priorityArg() []string {
	order := make([]string, len(SourcePriority))
	for i, src := range SourcePriority {
		order[i] = string(src)
	}
	return order
}

// UpsertObservation persists or replaces the observation for its (date, source) key.
func (s *Store) UpsertObservation(ctx context.Context, obs RateObservation) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, execErr := db.Exec(ctx, upsertObservationSQL,
		Day(obs.Date),
		string(obs.Source),
		obs.BuyRate.String(),
		obs.SellRate.String(),
		obs.RecordedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert observation: %w", execErr)
	}
	return nil
}

// GetObservation returns the observation for an exact date. With SourceAny the
// highest-priority source holding that date wins.
func (s *Store) GetObservation(ctx context.Context, date time.Time, source Source) (RateObservation, error) {
	db, err := s.getDB()
	if err != nil {
		return RateObservation{}, err
	}

	row := db.QueryRow(ctx, getObservationSQL, Day(date), string(source), priorityArg())
	obs, scanErr := scanObservationRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return RateObservation{}, ErrNotFound
		}
		return RateObservation{}, scanErr
	}
	return obs, nil
}

// GetObservationWithFallback behaves like GetObservation, but when the exact
// date has no row it resolves the nearest earlier date that does. The result
// carries the requested date so callers can flag the substitution.
func (s *Store) GetObservationWithFallback(ctx context.Context, date time.Time, source Source) (ResolvedRate, error) {
	db, err := s.getDB()
	if err != nil {
		return ResolvedRate{}, err
	}

	requested := Day(date)
	row := db.QueryRow(ctx, fallbackObservationSQL, requested, string(source), priorityArg())
	obs, scanErr := scanObservationRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return ResolvedRate{}, ErrNotFound
		}
		return ResolvedRate{}, scanErr
	}

	return ResolvedRate{
		Observation:   obs,
		RequestedDate: requested,
		Fallback:      !obs.Date.Equal(requested),
	}, nil
}

// ListObservations returns observations between from and to inclusive, in
// ascending date order. An empty window yields an empty slice, not an error.
func (s *Store) ListObservations(ctx context.Context, from, to time.Time, source Source) ([]RateObservation, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listObservationsSQL, Day(from), Day(to), string(source), priorityArg())
	if queryErr != nil {
		return nil, fmt.Errorf("list observations: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, 0)
}

// ListRecentObservations returns the newest observations by date, descending.
func (s *Store) ListRecentObservations(ctx context.Context, limit int) ([]RateObservation, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listRecentObservationsSQL, limit, priorityArg())
	if queryErr != nil {
		return nil, fmt.Errorf("list recent observations: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, limit)
}

// ImportObservations upserts a batch inside one transaction: either every row
// lands or none do.
func (s *Store) ImportObservations(ctx context.Context, obs []RateObservation) error {
	if len(obs) == 0 {
		return nil
	}

	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range obs {
		if _, execErr := tx.Exec(ctx, upsertObservationSQL,
			Day(o.Date),
			string(o.Source),
			o.BuyRate.String(),
			o.SellRate.String(),
			o.RecordedAt,
		); execErr != nil {
			return fmt.Errorf("import observation %s/%s: %w", Day(o.Date).Format("2006-01-02"), o.Source, execErr)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// CountObservations counts stored observations.
func (s *Store) CountObservations(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := db.QueryRow(ctx, countObservationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

// AppendRefreshAttempt records one adapter outcome. Attempts are never updated.
func (s *Store) AppendRefreshAttempt(ctx context.Context, attempt RefreshAttempt) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	var buy, sell, errMsg any
	if attempt.BuyRate != nil {
		buy = attempt.BuyRate.String()
	}
	if attempt.SellRate != nil {
		sell = attempt.SellRate.String()
	}
	if attempt.ErrorMessage != nil {
		errMsg = *attempt.ErrorMessage
	}

	_, execErr := db.Exec(ctx, appendRefreshAttemptSQL,
		string(attempt.Source),
		attempt.Status,
		buy,
		sell,
		errMsg,
		attempt.Duration.Milliseconds(),
		attempt.AttemptedAt,
	)
	if execErr != nil {
		return fmt.Errorf("append refresh attempt: %w", execErr)
	}
	return nil
}

// ListRecentRefreshAttempts returns the newest attempt log rows.
func (s *Store) ListRecentRefreshAttempts(ctx context.Context, limit int) ([]RefreshAttempt, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listRecentRefreshAttemptsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list refresh attempts: %w", queryErr)
	}
	defer rows.Close()

	attempts := make([]RefreshAttempt, 0, limit)
	for rows.Next() {
		attempt, scanErr := scanRefreshAttempt(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		attempts = append(attempts, attempt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return attempts, nil
}

func collectObservations(rows pgx.Rows, capHint int) ([]RateObservation, error) {
	observations := make([]RateObservation, 0, capHint)
	for rows.Next() {
		obs, scanErr := scanObservationRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func scanObservationRow(row pgx.Row) (RateObservation, error) {
	var (
		date       time.Time
		source     string
		buyStr     string
		sellStr    string
		recordedAt time.Time
	)

	if err := row.Scan(&date, &source, &buyStr, &sellStr, &recordedAt); err != nil {
		return RateObservation{}, err
	}

	buy, err := parseRate(buyStr, "buy rate")
	if err != nil {
		return RateObservation{}, err
	}
	sell, err := parseRate(sellStr, "sell rate")
	if err != nil {
		return RateObservation{}, err
	}

	return RateObservation{
		Date:       Day(date),
		Source:     Source(source),
		BuyRate:    buy,
		SellRate:   sell,
		RecordedAt: recordedAt,
	}, nil
}

func scanRefreshAttempt(rows pgx.Rows) (RefreshAttempt, error) {
	var (
		id         int64
		source     string
		status     string
		buyStr     sql.NullString
		sellStr    sql.NullString
		errMsg     sql.NullString
		durationMS int64
		attempted  time.Time
	)

	if err := rows.Scan(&id, &source, &status, &buyStr, &sellStr, &errMsg, &durationMS, &attempted); err != nil {
		return RefreshAttempt{}, err
	}

	attempt := RefreshAttempt{
		ID:          id,
		Source:      Source(source),
		Status:      status,
		Duration:    time.Duration(durationMS) * time.Millisecond,
		AttemptedAt: attempted,
	}

	if buyStr.Valid {
		buy, err := parseRate(buyStr.String, "buy rate")
		if err != nil {
			return RefreshAttempt{}, err
		}
		attempt.BuyRate = &buy
	}
	if sellStr.Valid {
		sell, err := parseRate(sellStr.String, "sell rate")
		if err != nil {
			return RefreshAttempt{}, err
		}
		attempt.SellRate = &sell
	}
	if errMsg.Valid {
		msg := errMsg.String
		attempt.ErrorMessage = &msg
	}

	return attempt, nil
}

func parseRate(value, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

var _ ObservationStore = (*Store)(nil)
var _ RefreshLogStore = (*Store)(nil)
