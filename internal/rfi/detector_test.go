package rfi

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// noiseWaterfall returns a waterfall of uniform linear noise in [1, 1.5).
func noiseWaterfall(t *testing.T, times, chans, coarse int, seed uint64) *spectrum.Waterfall {
	t.Helper()

	w, err := spectrum.NewWaterfall(spectrum.Header{
		SourceName:         "synthetic",
		FrequencyOrigin:    1000,
		FrequencyIncrement: 0.001,
		ChannelCount:       chans,
		CoarseChannelCount: coarse,
	}, times)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for ti := range times {
		row := w.Row(ti)
		for f := range row {
			row[f] = 1 + 0.5*rng.Float64()
		}
	}
	return w
}

func detectParams(coarseChanNum, aggregate int, transient bool) Params {
	return Params{
		CoarseChanNum: coarseChanNum,
		CentralLower:  0.2,
		CentralUpper:  0.8,
		Sigma:         10,
		Aggregate:     aggregate,
		Transient:     transient,
	}
}

// trimmedDB recomputes the trimmed median and std of a linear channel in dB.
func trimmedDB(values []float64, lower, upper float64) (median, std float64) {
	sorted := toDB(values)
	slices.Sort(sorted)
	n := float64(len(sorted))
	kept := sorted[int(n*lower):int(n*upper)]

	mid := len(kept) / 2
	if len(kept)%2 == 0 {
		median = (kept[mid-1] + kept[mid]) / 2
	} else {
		median = kept[mid]
	}

	var mean float64
	for _, v := range kept {
		mean += v
	}
	mean /= float64(len(kept))
	for _, v := range kept {
		std += (v - mean) * (v - mean)
	}
	return median, math.Sqrt(std / float64(len(kept)))
}

func TestDetect_SingleInjectedSpike(t *testing.T) {
	const spike = 300

	w := noiseWaterfall(t, 1, 2048, 2, 1)
	row := w.Row(0)

	// park the spike above the trimmed window first so the statistics
	// computed here are the ones the detector will see
	row[spike] = 1e9
	median, std := trimmedDB(row[:1024], 0.2, 0.8)
	row[spike] = Lin(median + 50*std)

	reg, err := Detect(context.Background(), w, detectParams(1, 1, false))
	require.NoError(t, err)

	assert.Equal(t, []int{spike}, reg.FlaggedBins())
	assert.Zero(t, reg.Degenerate())

	value, err := reg.MaskFor(spike, 0)
	require.NoError(t, err)
	assert.InDelta(t, Lin(median), value, 1e-9)

	seg := reg.Segments()[0]
	require.Len(t, seg.Table, 2)
	assert.Equal(t, ChannelRange{Start: 0, End: 1024}, seg.Table[0].ChannelRange)
	assert.Equal(t, ChannelRange{Start: 1024, End: 2048}, seg.Table[1].ChannelRange)
}

func TestDetect_TransientSpikeNeedsAggregation(t *testing.T) {
	const bin = 17

	w := noiseWaterfall(t, 40, 64, 1, 2)
	for ti := 10; ti <= 20; ti++ {
		w.Set(ti, bin, 1e4)
	}

	reg, err := Detect(context.Background(), w, detectParams(1, 1, false))
	require.NoError(t, err)
	assert.NotContains(t, reg.FlaggedBins(), bin)

	reg, err = Detect(context.Background(), w, detectParams(1, 4, true))
	require.NoError(t, err)
	require.True(t, reg.Transient())

	segments := reg.Segments()
	require.Len(t, segments, 4)
	for i, seg := range segments {
		_, found := seg.find(bin)
		assert.Equal(t, seg.Range == TimeRange{Start: 10, End: 20}, found, "segment %d %s", i, seg.Range)
	}
	assert.Equal(t, []int{bin}, reg.FlaggedBins())
}

func TestDetect_DeduplicatesAcrossBlocks(t *testing.T) {
	w := noiseWaterfall(t, 40, 128, 2, 3)
	for ti := range 40 {
		w.Set(ti, 5, 1e5) // persistent
	}
	for ti := 0; ti < 10; ti++ {
		w.Set(ti, 70, 1e5) // first block only
	}
	for ti := 20; ti < 30; ti++ {
		w.Set(ti, 70, 1e6) // third block, different level
		w.Set(ti, 90, 1e5)
	}

	reg, err := Detect(context.Background(), w, detectParams(1, 4, false))
	require.NoError(t, err)
	assert.False(t, reg.Transient())
	assert.Equal(t, []int{5, 70, 90}, reg.FlaggedBins())

	segments := reg.Segments()
	require.Len(t, segments, 1)
	assert.Equal(t, TimeRange{Start: 0, End: 40}, segments[0].Range)
	require.Len(t, segments[0].Flags, 3)

	// first block wins for bin 70
	i, found := segments[0].find(70)
	require.True(t, found)
	assert.Equal(t, TimeRange{Start: 0, End: 10}, segments[0].Flags[i].Segment)
}

func TestDetect_ReferenceTimeSelectsMaskTable(t *testing.T) {
	w := noiseWaterfall(t, 40, 64, 1, 4)
	for ti := 20; ti < 30; ti++ {
		row := w.Row(ti)
		for f := range row {
			row[f] *= 100
		}
	}
	for ti := range 40 {
		w.Set(ti, 3, 1e9)
	}

	p := detectParams(1, 4, false)
	p.ReferenceTime = 25
	reg, err := Detect(context.Background(), w, p)
	require.NoError(t, err)

	value, err := reg.MaskFor(3, 0)
	require.NoError(t, err)
	assert.Greater(t, value, 100.0)
	assert.Less(t, value, 150.0)

	p.ReferenceTime = 0
	reg, err = Detect(context.Background(), w, p)
	require.NoError(t, err)

	value, err = reg.MaskFor(3, 0)
	require.NoError(t, err)
	assert.Greater(t, value, 1.0)
	assert.Less(t, value, 1.5)
}

func TestDetect_TrailingPartialChannel(t *testing.T) {
	// 100 bins, 10 per coarse channel, grouped by 3: the last range holds 10 bins
	w := noiseWaterfall(t, 1, 100, 10, 5)
	row := w.Row(0)
	for k := range 10 {
		row[90+k] = Lin(1 + 0.1*float64(k))
	}
	row[95] = 1e9

	reg, err := Detect(context.Background(), w, detectParams(3, 1, false))
	require.NoError(t, err)

	seg := reg.Segments()[0]
	require.Len(t, seg.Table, 4)
	assert.Equal(t, ChannelRange{Start: 90, End: 100}, seg.Table[3].ChannelRange)
	assert.Equal(t, []int{95}, reg.FlaggedBins())

	// trimmed from its own 10 samples: 1.2 1.3 1.4 1.6 1.7 1.8 dB
	assert.InDelta(t, Lin(1.5), seg.Table[3].Value, 1e-9)
}

func TestDetect_DegenerateChannelFlagsNothing(t *testing.T) {
	w := noiseWaterfall(t, 1, 64, 2, 6)
	row := w.Row(0)
	for f := 0; f < 32; f++ {
		row[f] = 4
	}
	row[7] = 1e9

	reg, err := Detect(context.Background(), w, detectParams(1, 1, false))
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Degenerate())
	assert.NotContains(t, reg.FlaggedBins(), 7)

	value, err := reg.MaskFor(7, 0)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, value, 1e-9)
}

func TestDetect_ValidationGating(t *testing.T) {
	w := noiseWaterfall(t, 8, 64, 4, 7)

	testCases := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"aggregate exceeds integrations", func(p *Params) { p.Aggregate = 9 }, "aggregate"},
		{"aggregate not positive", func(p *Params) { p.Aggregate = 0 }, "aggregate"},
		{"central bounds inverted", func(p *Params) { p.CentralLower, p.CentralUpper = 0.8, 0.2 }, "centralLower"},
		{"central bounds outside unit range", func(p *Params) { p.CentralUpper = 1.5 }, "central"},
		{"too many coarse channels", func(p *Params) { p.CoarseChanNum = 5 }, "coarseChanNum"},
		{"coarse channels not positive", func(p *Params) { p.CoarseChanNum = 0 }, "coarseChanNum"},
		{"sigma not a number", func(p *Params) { p.Sigma = math.NaN() }, "sigma"},
		{"reference time out of range", func(p *Params) { p.ReferenceTime = 8 }, "referenceTime"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := detectParams(1, 2, false)
			tc.mutate(&p)

			reg, err := Detect(context.Background(), w, p)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)

			require.NotNil(t, reg)
			assert.True(t, reg.Empty())
			assert.Empty(t, reg.FlaggedBins())
			assert.Zero(t, reg.Len())
		})
	}
}

func TestDetect_CancelledContext(t *testing.T) {
	w := noiseWaterfall(t, 8, 64, 1, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg, err := Detect(ctx, w, detectParams(1, 4, false))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, reg.Empty())
}

func TestDetect_WorkerCountDoesNotChangeResult(t *testing.T) {
	w := noiseWaterfall(t, 60, 256, 4, 9)
	rng := rand.New(rand.NewPCG(10, 11))
	for range 20 {
		ti, f := rng.IntN(60), rng.IntN(256)
		for dt := 0; dt < 6 && ti+dt < 60; dt++ {
			w.Set(ti+dt, f, 1e6)
		}
	}

	p := detectParams(2, 10, false)
	serial, err := Detect(context.Background(), w, p, WithWorkers(1))
	require.NoError(t, err)
	parallel, err := Detect(context.Background(), w, p, WithWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, serial.Segments(), parallel.Segments())
}
