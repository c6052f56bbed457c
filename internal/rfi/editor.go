package rfi

import (
	"fmt"
	"math"
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// Mask selects the replacement value of a manual cut: derived from the
// surrounding coarse channels, or given explicitly in dB.
type Mask struct {
	explicit bool
	db       float64
}

// AutoMask derives the replacement value from the enclosing coarse channels.
func AutoMask() Mask {
	return Mask{}
}

// ExplicitDB uses the given value in dB.
func ExplicitDB(db float64) Mask {
	return Mask{explicit: true, db: db}
}

// IsAuto reports whether the mask is derived automatically.
func (m Mask) IsAuto() bool {
	return !m.explicit
}

// DB returns the explicit value in dB; ok is false for an automatic mask.
func (m Mask) DB() (db float64, ok bool) {
	return m.db, m.explicit
}

func (m Mask) String() string {
	if m.explicit {
		return fmt.Sprintf("%g dB", m.db)
	}
	return "auto"
}

// AddRange flags every bin in the frequency range [lowerMHz, upperMHz) over
// all integrations and returns the number of bins added. The bounds are
// converted with Header.FrequencyIndex, swapped on a descending axis and
// clipped to the data. A zero-width range adds nothing.
//
// Manual cuts are not supported on a transient registry.
func AddRange(w *spectrum.Waterfall, reg *Registry, lowerMHz, upperMHz float64, mask Mask) (int, error) {
	if reg.Transient() {
		return 0, ErrTransientUnsupported
	}
	if reg.Empty() {
		return 0, ErrEmptyRegistry
	}

	lo := w.Header.FrequencyIndex(lowerMHz)
	hi := w.Header.FrequencyIndex(upperMHz)
	if w.Header.Descending() {
		lo, hi = hi, lo
	}

	_, chans := w.Shape()
	lo, hi = max(lo, 0), min(hi, chans)
	if lo >= hi {
		return 0, nil
	}

	value, err := maskValue(w, mask, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("computing mask for bins [%d, %d): %w", lo, hi, err)
	}

	seg := reg.segments[0].Range
	for bin := lo; bin < hi; bin++ {
		if err = reg.Add(FlaggedIndex{Bin: bin, Value: value, Segment: seg, Origin: OriginManual}); err != nil {
			return bin - lo, err
		}
	}
	return hi - lo, nil
}

// AddIndices flags the given bins over all integrations. With an automatic
// mask each bin takes the value derived from its own enclosing channels.
func AddIndices(w *spectrum.Waterfall, reg *Registry, mask Mask, bins ...int) (int, error) {
	if reg.Transient() {
		return 0, ErrTransientUnsupported
	}
	if reg.Empty() {
		return 0, ErrEmptyRegistry
	}

	_, chans := w.Shape()
	seg := reg.segments[0].Range
	for i, bin := range bins {
		if bin < 0 || bin >= chans {
			return i, newValidationError("bin", "%d is outside [0, %d)", bin, chans)
		}

		value, err := maskValue(w, mask, bin, bin+1)
		if err != nil {
			return i, fmt.Errorf("computing mask for bin %d: %w", bin, err)
		}
		if err = reg.Add(FlaggedIndex{Bin: bin, Value: value, Segment: seg, Origin: OriginManual}); err != nil {
			return i, err
		}
	}
	return len(bins), nil
}

func maskValue(w *spectrum.Waterfall, mask Mask, lo, hi int) (float64, error) {
	if db, ok := mask.DB(); ok {
		return Lin(db), nil
	}
	return autoMask(w, lo, hi)
}

// autoMask averages the median linear power of the coarse channel containing
// bin lo and of the coarse channel starting at or after bin hi. Channel edges
// come from a one-coarse-channel partition; masked samples are skipped and a
// side without valid samples is left out of the average.
func autoMask(w *spectrum.Waterfall, lo, hi int) (float64, error) {
	times, chans := w.Shape()
	fine := w.FinePerCoarse()

	bounds, err := Boundaries(chans, fine)
	if err != nil {
		return 0, err
	}

	// first boundary above lo closes the lower channel
	below, _ := slices.BinarySearch(bounds, lo+1)
	lowerEnd := min(bounds[below], chans)
	lower := ChannelRange{Start: max(lowerEnd-fine, 0), End: lowerEnd}

	// first boundary at or above hi opens the upper channel
	above, _ := slices.BinarySearch(bounds, hi)
	upperStart := min(bounds[above], chans)
	upper := ChannelRange{Start: upperStart, End: min(upperStart+fine, chans)}

	median := w.MedianSpectrum(0, times)

	var medians []float64
	for _, ch := range []ChannelRange{lower, upper} {
		if m, ok := channelMedian(median[ch.Start:ch.End]); ok {
			medians = append(medians, m)
		}
	}
	if len(medians) == 0 {
		return 0, ErrEmptyChannel
	}

	return stats.Mean(medians)
}

func channelMedian(values []float64) (float64, bool) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}

	m, err := stats.Median(valid)
	if err != nil {
		return 0, false
	}
	return m, true
}
