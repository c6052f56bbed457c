package app

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/rfi-cleaner/internal/rfi"
	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// SpectrumData is a waterfall prepared for rendering: one row per integration,
// columns in ascending frequency and power in dB. Nil entries are samples that
// cannot be drawn (missing, non-positive or NaN).
type SpectrumData struct {
	Width, Height                int
	SourceName                   string
	FrequencyMin, FrequencyMax   float64 // Hz
	TimestampStart, TimestampEnd time.Time
	SampleInterval               time.Duration
	MissingSamples               int
	Bounds                       PowerBounds
	Spans                        [][]*float64
}

// Timed reports whether the rows can be labelled with wall-clock time.
func (s *SpectrumData) Timed() bool {
	return !s.TimestampStart.IsZero() && s.SampleInterval > 0
}

// NewSpectrumData converts w for rendering and feeds every drawable power
// reading into hist. Bounds are taken from hist once all rows are read.
func NewSpectrumData(w *spectrum.Waterfall, hist *PowerHistogram) *SpectrumData {
	times, chans := w.Shape()
	freqs := w.Frequencies()

	s := &SpectrumData{
		Width:          chans,
		Height:         times,
		SourceName:     w.Header.SourceName,
		FrequencyMin:   floats.Min(freqs) * 1e6,
		FrequencyMax:   floats.Max(freqs) * 1e6,
		SampleInterval: w.Header.SampleInterval,
		MissingSamples: w.MissingCount(),
		Spans:          make([][]*float64, times),
	}

	if !w.Header.StartTime.IsZero() {
		s.TimestampStart = w.Header.StartTime
		s.TimestampEnd = w.Header.StartTime.Add(time.Duration(max(times-1, 0)) * w.Header.SampleInterval)
	}

	descending := w.Header.Descending()
	for t := range times {
		row := w.Row(t)
		missing := w.MissingRow(t)

		powers := make([]*float64, chans)
		for f, v := range row {
			x := f
			if descending {
				x = chans - 1 - f
			}
			if (missing != nil && missing[f]) || !(v > 0) || math.IsInf(v, 0) {
				continue
			}

			db := rfi.DB(v)
			powers[x] = &db
			hist.Update(db)
		}
		s.Spans[t] = powers
	}

	s.Bounds = hist.GetPercentileBounds()
	return s
}
