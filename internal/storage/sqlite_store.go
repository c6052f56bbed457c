package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/rfi-cleaner/internal/rfi"
	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore returns a store backed by the Sqlite database at dbPath.
// Connections are opened on first use; the schema is created by the first
// write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// SaveOption configures SaveObservation.
type SaveOption func(*saveOptions)

type saveOptions struct {
	parentID *int64
}

// WithParent links a saved observation to the observation it was derived from.
func WithParent(id int64) SaveOption {
	return func(o *saveOptions) {
		o.parentID = &id
	}
}

func (s *SqliteStore) SaveObservation(ctx context.Context, w *spectrum.Waterfall, opts ...SaveOption) (observationID int64, err error) {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	times, _ := w.Shape()
	data := toObservationData(w.Header, times, o.parentID)

	result, err := tx.ExecContext(
		ctx,
		insertObservationSQL,
		data.ParentID,
		data.SourceName,
		data.StartTime,
		data.SampleInterval,
		data.FrequencyOrigin,
		data.FrequencyIncrement,
		data.ChannelCount,
		data.CoarseChannelCount,
		data.Integrations,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting observation: %w", err)
	}

	if observationID, err = result.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting observation ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertIntegrationSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for t := range times {
		if _, err = stmt.ExecContext(ctx, observationID, t, encodeRow(w.Row(t)), encodeMask(w.MissingRow(t))); err != nil {
			return 0, fmt.Errorf("inserting integration %d: %w", t, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return observationID, nil
}

// ReadIntegrations returns a reader over the integrations of an observation.
// The reader must be closed after use.
func (s *SqliteStore) ReadIntegrations(ctx context.Context, observationID int64, opts ...ReaderOption) (*SqliteIntegrationReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteIntegrationReader(ctx, db, observationID, opts...)
}

func (s *SqliteStore) Observation(ctx context.Context, id int64) (w *spectrum.Waterfall, err error) {
	r, err := s.ReadIntegrations(ctx, id)
	if err != nil {
		return nil, err
	}
	defer closeWithError(r, &err)

	info := r.Observation()
	if w, err = spectrum.NewWaterfall(info.Header, info.Integrations); err != nil {
		return nil, fmt.Errorf("observation %d: %w", id, err)
	}

	var read int
	for r.Next(ctx) {
		in := r.Current()
		if in.Index != read {
			return nil, fmt.Errorf("observation %d: integration %d is missing", id, read)
		}

		copy(w.Row(in.Index), in.Power)
		for f, m := range in.Missing {
			if m {
				w.SetMissing(in.Index, f)
			}
		}
		read++
	}
	if err = r.Error(); err != nil {
		return nil, fmt.Errorf("reading integrations: %w", err)
	}
	if read != info.Integrations {
		return nil, fmt.Errorf("observation %d: read %d of %d integrations", id, read, info.Integrations)
	}
	return w, nil
}

func (s *SqliteStore) Observations(ctx context.Context) (observations []*ObservationInfo, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectObservationsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var info *ObservationInfo
		if info, err = scanObservation(rows); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		observations = append(observations, info)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating observations: %w", err)
	}
	return observations, nil
}

func (s *SqliteStore) SaveCleaningRun(ctx context.Context, run CleaningRun) (id uuid.UUID, err error) {
	if id = run.ID; id == uuid.Nil {
		if id, err = uuid.NewV7(); err != nil {
			id = uuid.New()
		}
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling params: %w", err)
	}

	bins := run.FlaggedBins
	if bins == nil {
		bins = []int{}
	}
	flagged, err := json.Marshal(bins)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling flagged bins: %w", err)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return uuid.Nil, fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertCleaningRunSQL)
	if err != nil {
		return uuid.Nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(
		ctx,
		id.String(),
		run.ObservationID,
		toNullInt64(run.CleanedObservationID),
		run.Mode.String(),
		string(params),
		string(flagged),
		run.ManualBins,
		run.CutSamples,
		run.DegenerateChannels,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting cleaning run: %w", err)
	}
	return id, nil
}

func (s *SqliteStore) CleaningRuns(ctx context.Context, observationID int64) (runs []*CleaningRun, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, selectCleaningRunsSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	rows, err := stmt.QueryContext(ctx, observationID)
	if err != nil {
		return nil, fmt.Errorf("querying cleaning runs: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data cleaningRunData
		err = rows.Scan(
			&data.ID,
			&data.ObservationID,
			&data.CleanedObservationID,
			&data.CreatedAt,
			&data.Mode,
			&data.Params,
			&data.FlaggedBins,
			&data.ManualBins,
			&data.CutSamples,
			&data.DegenerateChannels,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning cleaning run: %w", err)
		}

		var run *CleaningRun
		if run, err = fromCleaningRunData(&data); err != nil {
			return nil, fmt.Errorf("cleaning run %s: %w", data.ID, err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cleaning runs: %w", err)
	}
	return runs, nil
}

func fromCleaningRunData(data *cleaningRunData) (*CleaningRun, error) {
	id, err := uuid.Parse(data.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing ID: %w", err)
	}
	mode, err := rfi.ParseApplyMode(data.Mode)
	if err != nil {
		return nil, err
	}

	run := &CleaningRun{
		ID:                   id,
		ObservationID:        data.ObservationID,
		CleanedObservationID: fromNullInt64(data.CleanedObservationID),
		CreatedAt:            data.CreatedAt,
		Mode:                 mode,
		ManualBins:           data.ManualBins,
		CutSamples:           data.CutSamples,
		DegenerateChannels:   data.DegenerateChannels,
	}
	if err = json.Unmarshal([]byte(data.Params), &run.Params); err != nil {
		return nil, fmt.Errorf("unmarshaling params: %w", err)
	}
	if err = json.Unmarshal([]byte(data.FlaggedBins), &run.FlaggedBins); err != nil {
		return nil, fmt.Errorf("unmarshaling flagged bins: %w", err)
	}
	return run, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
