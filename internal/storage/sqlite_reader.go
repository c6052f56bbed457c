package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoData indicates either that the requested observation does not exist,
// or that all integrations have been read from the reader.
var ErrNoData = errors.New("no data available")

// ReaderOption configures an IntegrationReader.
type ReaderOption func(*SqliteIntegrationReader)

// WithIntegrationRange limits the reader to integrations [start, end).
func WithIntegrationRange(start, end int) ReaderOption {
	return func(r *SqliteIntegrationReader) {
		r.start = &start
		r.end = &end
	}
}

// SqliteIntegrationReader iterates over the stored integrations of one
// observation in time order.
type SqliteIntegrationReader struct {
	db *sql.DB

	observationID int64
	observation   *ObservationInfo

	start *int // Optional first integration
	end   *int // Optional end of the integration range, exclusive

	current *Integration
	rows    *sql.Rows
	err     error
}

func newSqliteIntegrationReader(ctx context.Context, db *sql.DB, observationID int64, opts ...ReaderOption) (*SqliteIntegrationReader, error) {
	r := &SqliteIntegrationReader{
		db:            db,
		observationID: observationID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteIntegrationReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.observationID <= 0 {
		return errors.New("observation ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading observation", fn: r.loadObservation},
		{msg: "initializing range", fn: r.initRange},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteIntegrationReader) loadObservation(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectObservationSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	r.observation, err = scanObservation(stmt.QueryRowContext(ctx, r.observationID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("observation %d: %w", r.observationID, ErrNoData)
	}
	if err != nil {
		return fmt.Errorf("scanning observation: %w", err)
	}
	return nil
}

func (r *SqliteIntegrationReader) initRange(context.Context) error {
	times := r.observation.Integrations
	if r.start == nil {
		r.start = new(int)
	}
	if r.end == nil {
		r.end = &times
	}

	if *r.start < 0 || *r.end > times || *r.start > *r.end {
		return fmt.Errorf("integration range [%d, %d) is outside [0, %d)", *r.start, *r.end, times)
	}
	return nil
}

func (r *SqliteIntegrationReader) initQuery(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectIntegrationsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	r.rows, err = stmt.QueryContext(ctx, r.observationID, *r.start, *r.end)
	return err
}

// Observation returns the metadata of the observation being read.
func (r *SqliteIntegrationReader) Observation() *ObservationInfo {
	return r.observation
}

// Next advances to the next integration and reports whether one was read.
func (r *SqliteIntegrationReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		r.err = ErrNoData
		return false
	}

	var power, missing []byte
	next := &Integration{Power: make([]float64, r.observation.Header.ChannelCount)}
	if r.err = r.rows.Scan(&next.Index, &power, &missing); r.err != nil {
		r.err = fmt.Errorf("scanning integration: %w", r.err)
		return false
	}

	if r.err = decodeRow(power, next.Power); r.err != nil {
		r.err = fmt.Errorf("decoding integration %d: %w", next.Index, r.err)
		return false
	}
	if missing != nil {
		next.Missing = make([]bool, len(next.Power))
		if r.err = decodeMask(missing, next.Missing); r.err != nil {
			r.err = fmt.Errorf("decoding mask of integration %d: %w", next.Index, r.err)
			return false
		}
	}

	r.current = next
	return true
}

// Current returns the integration read by the last successful call to Next.
func (r *SqliteIntegrationReader) Current() *Integration {
	return r.current
}

// Error returns the error that stopped the iteration, if any. Reaching the
// end of the data is not an error.
func (r *SqliteIntegrationReader) Error() error {
	if r.err != nil && !errors.Is(r.err, ErrNoData) {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

// Close releases the underlying rows.
func (r *SqliteIntegrationReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}
