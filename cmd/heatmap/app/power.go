package app

import "math"

const (
	defaultMinPower = 0.0  // dB
	defaultMaxPower = 30.0 // dB
	defaultBinWidth = 0.1  // dB
	minimumRange    = 1.0  // dB

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20
)

// PowerBounds represents the calculated power boundaries
type PowerBounds struct {
	Min       float64 // 5th percentile power level in dB
	Max       float64 // 95th percentile power level in dB
	Mean      float64 // Mean power level in dB
	Reference float64 // Reference level for visualization in dB
}

func defaultPowerBounds() PowerBounds {
	return PowerBounds{
		Min:       defaultMinPower,
		Max:       defaultMaxPower,
		Mean:      (defaultMinPower + defaultMaxPower) / 2,
		Reference: (defaultMinPower + defaultMaxPower) / 2,
	}
}

// PowerHistogram maintains a histogram of power values in fixed-width dB bins
type PowerHistogram struct {
	bins       map[int]uint32 // Map of bin index to count
	binWidth   float64        // Width of one bin in dB
	totalCount uint64         // Total number of samples
	minBin     int            // Cache for min bin
	maxBin     int            // Cache for max bin
}

// NewPowerHistogram creates a new histogram. A non-positive width selects
// 0.1 dB bins.
func NewPowerHistogram(binWidth float64) *PowerHistogram {
	if binWidth <= 0 {
		binWidth = defaultBinWidth
	}
	return &PowerHistogram{
		bins:     make(map[int]uint32),
		binWidth: binWidth,
		minBin:   math.MaxInt32,
		maxBin:   math.MinInt32,
	}
}

// getBinIndex converts power value to bin index
func (h *PowerHistogram) getBinIndex(power float64) int {
	return int(math.Floor(power / h.binWidth))
}

// scaleDown scales all bin counts down by factor of 2
func (h *PowerHistogram) scaleDown() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	// Scale down all bins by factor of 2
	for bin := range h.bins {
		h.bins[bin] /= 2
		// Remove bin if it becomes 0
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}

		if bin < h.minBin {
			h.minBin = bin
		}
		if bin > h.maxBin {
			h.maxBin = bin
		}
	}
	h.totalCount /= 2
}

// Update adds new power reading to the histogram. NaN and infinite readings
// are ignored.
func (h *PowerHistogram) Update(power float64) {
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return
	}

	bin := h.getBinIndex(power)

	// Check both conditions for scaling
	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.scaleDown()
	}

	h.bins[bin]++
	h.totalCount++

	if bin < h.minBin {
		h.minBin = bin
	}
	if bin > h.maxBin {
		h.maxBin = bin
	}
}

// Count returns the number of readings in the histogram.
func (h *PowerHistogram) Count() uint64 {
	return h.totalCount
}

// GetPercentileBounds returns power bounds based on percentiles
func (h *PowerHistogram) GetPercentileBounds() PowerBounds {
	if h.totalCount < minimumSampleCount { // Require minimum samples
		return defaultPowerBounds()
	}

	// Calculate target counts for 5th and 95th percentiles
	target5th := h.totalCount * 5 / 100

	// Find the bins corresponding to these percentiles
	var count uint64
	var min5th, max95th int

	// Find 5th percentile
	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target5th {
			min5th = bin
			break
		}
	}

	// Find 95th percentile
	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target5th {
			max95th = bin
			break
		}
	}

	// Calculate mean (weighted average of bin centers)
	var sumProduct float64
	for bin, n := range h.bins {
		sumProduct += (float64(bin) + 0.5) * h.binWidth * float64(n)
	}
	mean := sumProduct / float64(h.totalCount)

	minPower := float64(min5th) * h.binWidth
	maxPower := float64(max95th+1) * h.binWidth

	// Ensure minimum range
	if maxPower-minPower < minimumRange {
		center := (maxPower + minPower) / 2
		minPower = center - minimumRange/2
		maxPower = center + minimumRange/2
	}

	// Add small margin
	margin := (maxPower - minPower) / 10 // 10% margin

	return PowerBounds{
		Min:       minPower - margin,
		Max:       maxPower + margin,
		Mean:      mean,
		Reference: mean,
	}
}
