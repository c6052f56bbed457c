package rfi

import (
	"fmt"
	"sort"
)

// ChannelRange is a half-open range of frequency bins [Start, End).
type ChannelRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bins in the range.
func (r ChannelRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether bin lies in the range.
func (r ChannelRange) Contains(bin int) bool {
	return bin >= r.Start && bin < r.End
}

// Layout is an ordered, gap-free partition of the frequency axis into coarse
// channel ranges.
type Layout []ChannelRange

// Boundaries returns the channel boundary offsets 0, g, 2g, ... up to and
// including the first boundary not below totalBins, where g is binsPerGroup.
// The result has ceil(totalBins/g)+1 elements; the last boundary may exceed
// totalBins when it is not a multiple of g.
func Boundaries(totalBins, binsPerGroup int) ([]int, error) {
	if binsPerGroup < 1 {
		return nil, newValidationError("binsPerGroup", "must be at least 1, got %d", binsPerGroup)
	}
	if totalBins < 1 {
		return nil, newValidationError("totalBins", "must be at least 1, got %d", totalBins)
	}

	groups := (totalBins + binsPerGroup - 1) / binsPerGroup
	bounds := make([]int, groups+1)
	for i := range bounds {
		bounds[i] = i * binsPerGroup
	}
	return bounds, nil
}

// NewLayout partitions [0, totalBins) into ranges of binsPerGroup bins. When
// totalBins is not a multiple of binsPerGroup the trailing range is shorter.
func NewLayout(totalBins, binsPerGroup int) (Layout, error) {
	bounds, err := Boundaries(totalBins, binsPerGroup)
	if err != nil {
		return nil, err
	}

	layout := make(Layout, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		layout = append(layout, ChannelRange{
			Start: bounds[i],
			End:   min(bounds[i+1], totalBins),
		})
	}
	return layout, nil
}

// Find returns the position of the range containing bin.
func (l Layout) Find(bin int) (int, bool) {
	i := sort.Search(len(l), func(i int) bool { return l[i].End > bin })
	if i < len(l) && l[i].Contains(bin) {
		return i, true
	}
	return 0, false
}

// Bins returns the total number of bins covered.
func (l Layout) Bins() int {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1].End
}

// TimeRange is a half-open range of time integrations [Start, End).
type TimeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of integrations in the range.
func (r TimeRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether integration t lies in the range.
func (r TimeRange) Contains(t int) bool {
	return t >= r.Start && t < r.End
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// SplitTime divides [0, times) into blocks contiguous ranges of times/blocks
// integrations each; the final range absorbs the remainder.
func SplitTime(times, blocks int) ([]TimeRange, error) {
	if blocks < 1 {
		return nil, newValidationError("aggregate", "must be a positive integer, got %d", blocks)
	}
	if blocks > times {
		return nil, newValidationError("aggregate", "%d exceeds the number of integrations (%d)", blocks, times)
	}

	size := times / blocks
	segments := make([]TimeRange, blocks)
	for i := range segments {
		segments[i] = TimeRange{Start: i * size, End: (i + 1) * size}
	}
	segments[blocks-1].End = times
	return segments, nil
}
