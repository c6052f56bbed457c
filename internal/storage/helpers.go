package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError is deferred right after BeginTx; a committed transaction
// reports sql.ErrTxDone, which is not an error here.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (*ObservationInfo, error) {
	var data observationData
	err := row.Scan(
		&data.ID,
		&data.ParentID,
		&data.CreatedAt,
		&data.SourceName,
		&data.StartTime,
		&data.SampleInterval,
		&data.FrequencyOrigin,
		&data.FrequencyIncrement,
		&data.ChannelCount,
		&data.CoarseChannelCount,
		&data.Integrations,
	)
	if err != nil {
		return nil, err
	}
	return fromObservationData(&data), nil
}

func toObservationData(h spectrum.Header, times int, parentID *int64) *observationData {
	return &observationData{
		ParentID: toNullInt64(parentID),
		StartTime: sql.NullInt64{
			Int64: h.StartTime.UnixNano(),
			Valid: !h.StartTime.IsZero(),
		},
		SourceName:         h.SourceName,
		SampleInterval:     int64(h.SampleInterval),
		FrequencyOrigin:    h.FrequencyOrigin,
		FrequencyIncrement: h.FrequencyIncrement,
		ChannelCount:       h.ChannelCount,
		CoarseChannelCount: h.CoarseChannelCount,
		Integrations:       times,
	}
}

func fromObservationData(data *observationData) *ObservationInfo {
	info := &ObservationInfo{
		ID:        data.ID,
		ParentID:  fromNullInt64(data.ParentID),
		CreatedAt: data.CreatedAt,
		Header: spectrum.Header{
			SourceName:         data.SourceName,
			SampleInterval:     time.Duration(data.SampleInterval),
			FrequencyOrigin:    data.FrequencyOrigin,
			FrequencyIncrement: data.FrequencyIncrement,
			ChannelCount:       data.ChannelCount,
			CoarseChannelCount: data.CoarseChannelCount,
		},
		Integrations: data.Integrations,
	}
	if data.StartTime.Valid {
		info.Header.StartTime = time.Unix(0, data.StartTime.Int64).UTC()
	}
	return info
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
