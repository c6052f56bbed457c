package spectrum

import (
	"math"
	"time"
)

// Header describes the geometry of a waterfall recording. Frequencies are in MHz.
type Header struct {
	SourceName         string        `json:"sourceName"`         // Observed source or scan label
	StartTime          time.Time     `json:"startTime"`          // Timestamp of the first integration
	SampleInterval     time.Duration `json:"sampleInterval"`     // Time between two integrations
	FrequencyOrigin    float64       `json:"frequencyOrigin"`    // Frequency of bin 0 in MHz
	FrequencyIncrement float64       `json:"frequencyIncrement"` // MHz per bin, negative for a descending axis
	ChannelCount       int           `json:"channelCount"`       // Number of fine frequency bins
	CoarseChannelCount int           `json:"coarseChannelCount"` // Number of coarse channels recorded by the backend
}

// FrequencyIndex converts a frequency in MHz to the nearest bin index, halves
// rounding to even. The result is not clipped to the frequency axis.
func (h Header) FrequencyIndex(freq float64) int {
	return int(math.RoundToEven((freq - h.FrequencyOrigin) / h.FrequencyIncrement))
}

// Frequency returns the frequency of bin i in MHz.
func (h Header) Frequency(i int) float64 {
	return h.FrequencyOrigin + float64(i)*h.FrequencyIncrement
}

// Descending reports whether frequency decreases with the bin index.
func (h Header) Descending() bool {
	return h.FrequencyIncrement < 0
}

// FinePerCoarse returns the number of fine bins in one coarse channel.
func (h Header) FinePerCoarse() int {
	if h.CoarseChannelCount <= 0 {
		return h.ChannelCount
	}
	return h.ChannelCount / h.CoarseChannelCount
}

// Region is a rectangular cut over the time and frequency axes. Nil bounds
// default to the edges of the data; frequency bounds are in MHz and the time
// range is half-open.
type Region struct {
	FreqLower *float64 `json:"freqLower,omitempty" yaml:"freqLower,omitempty"`
	FreqUpper *float64 `json:"freqUpper,omitempty" yaml:"freqUpper,omitempty"`
	TimeStart *int     `json:"timeStart,omitempty" yaml:"timeStart,omitempty"`
	TimeEnd   *int     `json:"timeEnd,omitempty" yaml:"timeEnd,omitempty"`
}
