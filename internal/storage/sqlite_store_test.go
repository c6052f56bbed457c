package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/rfi-cleaner/internal/rfi"
	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "rfi.db"))
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func testWaterfall(t *testing.T) *spectrum.Waterfall {
	t.Helper()

	w, err := spectrum.FromRows(spectrum.Header{
		SourceName:         "B0329+54",
		StartTime:          time.Date(2024, 3, 9, 21, 15, 0, 125, time.UTC),
		SampleInterval:     250 * time.Millisecond,
		FrequencyOrigin:    1500,
		FrequencyIncrement: -0.25,
		ChannelCount:       12,
		CoarseChannelCount: 3,
	}, [][]float64{
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		{0.5, math.Inf(1), 1e-30, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		{12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
	})
	require.NoError(t, err)
	w.SetMissing(1, 0)
	w.SetMissing(1, 11)
	return w
}

func TestSqliteStore_ObservationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := testWaterfall(t)

	id, err := s.SaveObservation(ctx, w)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.Observation(ctx, id)
	require.NoError(t, err)

	assert.True(t, w.Header.StartTime.Equal(got.Header.StartTime))
	wantHeader, gotHeader := w.Header, got.Header
	wantHeader.StartTime, gotHeader.StartTime = time.Time{}, time.Time{}
	assert.Equal(t, wantHeader, gotHeader)

	times, chans := got.Shape()
	require.Equal(t, 3, times)
	require.Equal(t, 12, chans)
	for ti := range times {
		assert.Equal(t, w.Row(ti), got.Row(ti), "row %d", ti)
	}

	assert.Equal(t, 2, got.MissingCount())
	assert.True(t, got.IsMissing(1, 0))
	assert.True(t, got.IsMissing(1, 11))
	assert.False(t, got.IsMissing(0, 0))
}

func TestSqliteStore_UnknownObservation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveObservation(ctx, testWaterfall(t))
	require.NoError(t, err)

	_, err = s.Observation(ctx, 42)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSqliteStore_Observations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := testWaterfall(t)

	rawID, err := s.SaveObservation(ctx, w)
	require.NoError(t, err)

	cleaned := w.Clone()
	cleaned.ClearMask()
	cleanedID, err := s.SaveObservation(ctx, cleaned, WithParent(rawID))
	require.NoError(t, err)

	list, err := s.Observations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, rawID, list[0].ID)
	assert.Nil(t, list[0].ParentID)
	assert.Equal(t, 3, list[0].Integrations)
	assert.Equal(t, "B0329+54", list[0].Header.SourceName)
	assert.False(t, list[0].CreatedAt.IsZero())

	assert.Equal(t, cleanedID, list[1].ID)
	require.NotNil(t, list[1].ParentID)
	assert.Equal(t, rawID, *list[1].ParentID)

	got, err := s.Observation(ctx, cleanedID)
	require.NoError(t, err)
	assert.False(t, got.Masked())
}

func TestSqliteStore_ReadIntegrationsRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := testWaterfall(t)

	id, err := s.SaveObservation(ctx, w)
	require.NoError(t, err)

	r, err := s.ReadIntegrations(ctx, id, WithIntegrationRange(1, 3))
	require.NoError(t, err)
	defer r.Close()

	var indices []int
	for r.Next(ctx) {
		in := r.Current()
		indices = append(indices, in.Index)
		assert.Equal(t, w.Row(in.Index), in.Power)
		if in.Index == 2 {
			assert.Nil(t, in.Missing)
		}
	}
	require.NoError(t, r.Error())
	assert.Equal(t, []int{1, 2}, indices)

	_, err = s.ReadIntegrations(ctx, id, WithIntegrationRange(2, 5))
	assert.Error(t, err)
}

func TestSqliteStore_CleaningRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rawID, err := s.SaveObservation(ctx, testWaterfall(t))
	require.NoError(t, err)
	cleanedID, err := s.SaveObservation(ctx, testWaterfall(t), WithParent(rawID))
	require.NoError(t, err)

	params := rfi.DefaultParams()
	params.CoarseChanNum = 1
	first, err := s.SaveCleaningRun(ctx, CleaningRun{
		ObservationID:        rawID,
		CleanedObservationID: &cleanedID,
		Mode:                 rfi.ModeFill,
		Params:               params,
		FlaggedBins:          []int{3, 7},
		ManualBins:           1,
		CutSamples:           24,
		DegenerateChannels:   2,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first)

	explicit := uuid.New()
	second, err := s.SaveCleaningRun(ctx, CleaningRun{ID: explicit, ObservationID: rawID, Params: params})
	require.NoError(t, err)
	assert.Equal(t, explicit, second)

	runs, err := s.CleaningRuns(ctx, rawID)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[uuid.UUID]*CleaningRun{runs[0].ID: runs[0], runs[1].ID: runs[1]}
	require.Contains(t, byID, first)
	require.Contains(t, byID, second)

	run := byID[first]
	assert.Equal(t, rawID, run.ObservationID)
	require.NotNil(t, run.CleanedObservationID)
	assert.Equal(t, cleanedID, *run.CleanedObservationID)
	assert.Equal(t, rfi.ModeFill, run.Mode)
	assert.Equal(t, params, run.Params)
	assert.Equal(t, []int{3, 7}, run.FlaggedBins)
	assert.Equal(t, 1, run.ManualBins)
	assert.Equal(t, 24, run.CutSamples)
	assert.Equal(t, 2, run.DegenerateChannels)

	run = byID[second]
	assert.Nil(t, run.CleanedObservationID)
	assert.Equal(t, rfi.ModeExclude, run.Mode)
	assert.Empty(t, run.FlaggedBins)

	runs, err = s.CleaningRuns(ctx, cleanedID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSqliteStore_CloseIsIdempotent(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "rfi.db"))
	_, err := s.SaveObservation(context.Background(), testWaterfall(t))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
