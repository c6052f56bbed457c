package rfi

import (
	"math"
	"slices"

	"github.com/montanaflynn/stats"
)

// channelStats is the robust centre and spread of one coarse channel in dB.
type channelStats struct {
	median float64
	std    float64
	valid  bool
}

// robustStats trims the sorted channel to sorted[floor(n*lower):floor(n*upper)]
// and returns the median and population standard deviation of what is left.
// NaN samples (bins with no valid data) are ignored and n counts the rest.
//
// The result is invalid when the trimmed subset is empty or its spread is zero
// or not finite; such a channel can not yield a z-score.
func robustStats(db []float64, lower, upper float64) channelStats {
	sorted := make([]float64, 0, len(db))
	for _, v := range db {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	slices.Sort(sorted)

	n := float64(len(sorted))
	start := max(int(n*lower), 0)
	end := min(int(n*upper), len(sorted))
	if start >= end {
		return channelStats{median: math.NaN()}
	}
	kept := sorted[start:end]

	median, err := stats.Median(kept)
	if err != nil {
		return channelStats{median: math.NaN()}
	}
	std, err := stats.StandardDeviationPopulation(kept)
	if err != nil || std == 0 || math.IsNaN(std) || math.IsInf(std, 0) || math.IsInf(median, 0) {
		return channelStats{median: median}
	}

	return channelStats{median: median, std: std, valid: true}
}

// outliers returns the offsets of the samples whose z-score against st is
// strictly above sigma. An invalid statistic flags nothing.
func outliers(db []float64, st channelStats, sigma float64) []int {
	if !st.valid {
		return nil
	}

	var marked []int
	for i, v := range db {
		if (v-st.median)/st.std > sigma {
			marked = append(marked, i)
		}
	}
	return marked
}
