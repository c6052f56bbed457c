package spectrum

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// ErrShapeMismatch is returned when sample rows do not match the header geometry.
var ErrShapeMismatch = errors.New("sample shape does not match header")

// Waterfall holds power samples indexed by time integration and frequency bin.
// The polarization axis of the recording is always of size one and is not
// stored. Samples are linear (non-dB) power.
//
// A Waterfall may carry a missing-data mask. Masked samples keep their stored
// value but are skipped by every reduction (MedianSpectrum, TotalPower).
//
// Waterfall is not safe for concurrent mutation.
type Waterfall struct {
	Header Header

	times   int
	data    []float64
	missing []bool
}

// NewWaterfall allocates a zero-filled waterfall with the given number of
// time integrations.
func NewWaterfall(h Header, times int) (*Waterfall, error) {
	if err := validateHeader(h); err != nil {
		return nil, err
	}
	if times <= 0 {
		return nil, fmt.Errorf("invalid number of integrations: %d", times)
	}

	return &Waterfall{
		Header: h,
		times:  times,
		data:   make([]float64, times*h.ChannelCount),
	}, nil
}

// FromRows builds a waterfall from one slice of samples per time integration.
// The rows are copied.
func FromRows(h Header, rows [][]float64) (*Waterfall, error) {
	w, err := NewWaterfall(h, len(rows))
	if err != nil {
		return nil, err
	}
	for t, row := range rows {
		if len(row) != h.ChannelCount {
			return nil, fmt.Errorf("row %d has %d samples, want %d: %w", t, len(row), h.ChannelCount, ErrShapeMismatch)
		}
		copy(w.Row(t), row)
	}
	return w, nil
}

func validateHeader(h Header) error {
	switch {
	case h.ChannelCount <= 0:
		return fmt.Errorf("invalid channel count: %d", h.ChannelCount)
	case h.CoarseChannelCount <= 0:
		return fmt.Errorf("invalid coarse channel count: %d", h.CoarseChannelCount)
	case h.CoarseChannelCount > h.ChannelCount:
		return fmt.Errorf("coarse channel count %d exceeds channel count %d", h.CoarseChannelCount, h.ChannelCount)
	case h.FrequencyIncrement == 0 || math.IsNaN(h.FrequencyIncrement):
		return fmt.Errorf("invalid frequency increment: %v", h.FrequencyIncrement)
	}
	return nil
}

// Shape returns the number of time integrations and frequency bins.
func (w *Waterfall) Shape() (times, chans int) {
	return w.times, w.Header.ChannelCount
}

// CoarseChannelCount returns the number of coarse channels recorded in the header.
func (w *Waterfall) CoarseChannelCount() int {
	return w.Header.CoarseChannelCount
}

// FinePerCoarse returns the number of fine bins per coarse channel.
func (w *Waterfall) FinePerCoarse() int {
	return w.Header.FinePerCoarse()
}

// At returns the sample at integration t and bin f.
func (w *Waterfall) At(t, f int) float64 {
	return w.data[t*w.Header.ChannelCount+f]
}

// Set stores a sample at integration t and bin f.
func (w *Waterfall) Set(t, f int, v float64) {
	w.data[t*w.Header.ChannelCount+f] = v
}

// Row returns the samples of integration t. The slice aliases the waterfall.
func (w *Waterfall) Row(t int) []float64 {
	n := w.Header.ChannelCount
	return w.data[t*n : (t+1)*n : (t+1)*n]
}

// Masked reports whether a missing-data mask is attached.
func (w *Waterfall) Masked() bool {
	return w.missing != nil
}

// IsMissing reports whether the sample at (t, f) is masked out.
func (w *Waterfall) IsMissing(t, f int) bool {
	return w.missing != nil && w.missing[t*w.Header.ChannelCount+f]
}

// SetMissing masks out the sample at (t, f), attaching a mask if needed.
func (w *Waterfall) SetMissing(t, f int) {
	if w.missing == nil {
		w.missing = make([]bool, len(w.data))
	}
	w.missing[t*w.Header.ChannelCount+f] = true
}

// MissingRow returns the mask of integration t, or nil when no mask is attached.
// The slice aliases the waterfall.
func (w *Waterfall) MissingRow(t int) []bool {
	if w.missing == nil {
		return nil
	}
	n := w.Header.ChannelCount
	return w.missing[t*n : (t+1)*n : (t+1)*n]
}

// MissingCount returns the number of masked samples.
func (w *Waterfall) MissingCount() int {
	var n int
	for _, m := range w.missing {
		if m {
			n++
		}
	}
	return n
}

// ClearMask detaches the missing-data mask.
func (w *Waterfall) ClearMask() {
	w.missing = nil
}

// Clone returns a deep copy of the waterfall, mask included.
func (w *Waterfall) Clone() *Waterfall {
	return &Waterfall{
		Header:  w.Header,
		times:   w.times,
		data:    slices.Clone(w.data),
		missing: slices.Clone(w.missing),
	}
}

// Frequencies returns the frequency of every bin in MHz, in storage order.
func (w *Waterfall) Frequencies() []float64 {
	freqs := make([]float64, w.Header.ChannelCount)
	for i := range freqs {
		freqs[i] = w.Header.Frequency(i)
	}
	return freqs
}

// MedianSpectrum reduces integrations [start, end) to one spectrum by taking
// the element-wise median over time. Masked samples are skipped; a bin with no
// valid sample in the range yields NaN.
func (w *Waterfall) MedianSpectrum(start, end int) []float64 {
	start = max(start, 0)
	end = min(end, w.times)

	n := w.Header.ChannelCount
	out := make([]float64, n)
	column := make([]float64, 0, max(end-start, 0))

	for f := 0; f < n; f++ {
		column = column[:0]
		for t := start; t < end; t++ {
			if w.IsMissing(t, f) {
				continue
			}
			column = append(column, w.data[t*n+f])
		}

		median, err := stats.Median(column)
		if err != nil {
			out[f] = math.NaN()
			continue
		}
		out[f] = median
	}
	return out
}

// TotalPower integrates the power of every valid sample of the observation.
func (w *Waterfall) TotalPower() float64 {
	if w.missing == nil {
		return floats.Sum(w.data)
	}

	var sum float64
	for i, v := range w.data {
		if !w.missing[i] {
			sum += v
		}
	}
	return sum
}

// CutRegion masks out every sample inside the region and returns the number of
// samples covered. Frequency bounds are converted to bins the same way as
// Header.FrequencyIndex and swapped on a descending axis; all bounds are
// clipped to the data.
func (w *Waterfall) CutRegion(r Region) (int, error) {
	fLo, fHi := 0, w.Header.ChannelCount
	if r.FreqLower != nil {
		fLo = w.Header.FrequencyIndex(*r.FreqLower)
	}
	if r.FreqUpper != nil {
		fHi = w.Header.FrequencyIndex(*r.FreqUpper)
	}
	if w.Header.Descending() {
		// on a descending axis a nil bound still means the array edge
		switch {
		case r.FreqLower != nil && r.FreqUpper != nil:
			fLo, fHi = fHi, fLo
		case r.FreqLower != nil:
			fLo, fHi = 0, fLo
		case r.FreqUpper != nil:
			fLo, fHi = fHi, w.Header.ChannelCount
		}
	}

	tLo, tHi := 0, w.times
	if r.TimeStart != nil {
		tLo = *r.TimeStart
	}
	if r.TimeEnd != nil {
		tHi = *r.TimeEnd
	}
	if tLo > tHi {
		return 0, fmt.Errorf("invalid time range: start %d after end %d", tLo, tHi)
	}

	fLo, fHi = max(fLo, 0), min(fHi, w.Header.ChannelCount)
	tLo, tHi = max(tLo, 0), min(tHi, w.times)

	var n int
	for t := tLo; t < tHi; t++ {
		for f := fLo; f < fHi; f++ {
			w.SetMissing(t, f)
			n++
		}
	}
	return n, nil
}
