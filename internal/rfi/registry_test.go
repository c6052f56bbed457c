package rfi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddKeepsOrderAndUniqueness(t *testing.T) {
	layout, err := NewLayout(32, 8)
	require.NoError(t, err)
	reg := NewRegistry(4, layout)
	full := TimeRange{Start: 0, End: 4}

	for _, bin := range []int{20, 3, 11, 3, 31} {
		require.NoError(t, reg.Add(FlaggedIndex{Bin: bin, Value: 1, Segment: full}))
	}
	assert.Equal(t, []int{3, 11, 20, 31}, reg.FlaggedBins())
	assert.Equal(t, 4, reg.Len())

	// a detected entry never replaces, a manual one does
	require.NoError(t, reg.Add(FlaggedIndex{Bin: 11, Value: 2, Segment: full}))
	v, err := reg.MaskFor(11, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v) // table value unknown, falls back to the entry

	require.NoError(t, reg.Add(FlaggedIndex{Bin: 11, Value: 7, Segment: full, Origin: OriginManual}))
	v, err = reg.MaskFor(11, 0)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
	assert.Equal(t, 4, reg.Len())
}

func TestRegistry_AddOutsideLayout(t *testing.T) {
	layout, err := NewLayout(16, 8)
	require.NoError(t, err)
	reg := NewRegistry(2, layout)

	var gerr *GeometryError
	err = reg.Add(FlaggedIndex{Bin: 16, Segment: TimeRange{Start: 0, End: 2}})
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 16, gerr.Bin)

	err = (&Registry{}).Add(FlaggedIndex{Bin: 1})
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestRegistry_SegmentsAreCopies(t *testing.T) {
	layout, err := NewLayout(16, 8)
	require.NoError(t, err)
	reg := NewRegistry(2, layout)
	full := TimeRange{Start: 0, End: 2}
	reg.segments[0].Table[0].Value = 3

	require.NoError(t, reg.Add(FlaggedIndex{Bin: 2, Value: 1, Segment: full}))
	require.NoError(t, reg.Add(FlaggedIndex{Bin: 9, Value: 1, Segment: full}))

	segments := reg.Segments()
	segments[0].Table[0].Value = 100
	segments[0].Flags[0], segments[0].Flags[1] = segments[0].Flags[1], segments[0].Flags[0]
	segments[0].Flags = segments[0].Flags[:1]

	v, err := reg.MaskFor(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, []int{2, 9}, reg.FlaggedBins())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_MaskFor(t *testing.T) {
	reg := &Registry{
		transient: true,
		segments: []Segment{
			{
				Range: TimeRange{Start: 0, End: 5},
				Table: MaskTable{
					{ChannelRange: ChannelRange{Start: 0, End: 4}, Value: 10},
					{ChannelRange: ChannelRange{Start: 4, End: 8}, Value: math.NaN()},
				},
				Flags: []FlaggedIndex{{Bin: 1, Value: 99}, {Bin: 5, Value: 42}},
			},
			{
				Range: TimeRange{Start: 5, End: 10},
				Table: MaskTable{
					{ChannelRange: ChannelRange{Start: 0, End: 4}, Value: 20},
					{ChannelRange: ChannelRange{Start: 4, End: 8}, Value: 30},
				},
				Flags: []FlaggedIndex{{Bin: 6, Value: 1, Origin: OriginManual}},
			},
		},
	}

	testCases := []struct {
		name    string
		bin     int
		segment int
		want    float64
	}{
		{"detected bin takes table value", 1, 0, 10},
		{"unknown table value falls back to entry", 5, 0, 42},
		{"unflagged bin takes table value", 2, 1, 20},
		{"manual entry keeps own value", 6, 1, 1},
		{"second segment table", 4, 1, 30},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reg.MaskFor(tc.bin, tc.segment)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	var gerr *GeometryError
	_, err := reg.MaskFor(8, 0)
	assert.ErrorAs(t, err, &gerr)
	_, err = reg.MaskFor(1, 2)
	assert.ErrorAs(t, err, &gerr)

	assert.Equal(t, []int{1, 5, 6}, reg.FlaggedBins())
}

func TestRegistry_TransientAddRequiresKnownSegment(t *testing.T) {
	reg := &Registry{
		transient: true,
		segments: []Segment{
			{Range: TimeRange{Start: 0, End: 5}, Table: MaskTable{{ChannelRange: ChannelRange{Start: 0, End: 8}}}},
			{Range: TimeRange{Start: 5, End: 10}, Table: MaskTable{{ChannelRange: ChannelRange{Start: 0, End: 8}}}},
		},
	}

	require.NoError(t, reg.Add(FlaggedIndex{Bin: 2, Segment: TimeRange{Start: 5, End: 10}}))
	assert.Empty(t, reg.Segments()[0].Flags)
	assert.Len(t, reg.Segments()[1].Flags, 1)

	assert.Error(t, reg.Add(FlaggedIndex{Bin: 2, Segment: TimeRange{Start: 0, End: 10}}))
}

func TestMaskTable_Lookup(t *testing.T) {
	layout, err := NewLayout(10, 4)
	require.NoError(t, err)
	table := newMaskTable(layout)

	i, ok := table.Lookup(9)
	require.True(t, ok)
	assert.Equal(t, 2, i)
	assert.True(t, math.IsNaN(table[i].Value))

	_, ok = table.Lookup(10)
	assert.False(t, ok)
}
