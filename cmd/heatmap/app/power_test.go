package app

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerHistogram_TooFewSamples(t *testing.T) {
	h := NewPowerHistogram(0.5)
	for i := range minimumSampleCount - 1 {
		h.Update(float64(i))
	}
	assert.Equal(t, defaultPowerBounds(), h.GetPercentileBounds())
}

func TestPowerHistogram_IgnoresInvalid(t *testing.T) {
	h := NewPowerHistogram(0)
	h.Update(math.NaN())
	h.Update(math.Inf(1))
	h.Update(math.Inf(-1))
	h.Update(3)
	assert.Equal(t, uint64(1), h.Count())
}

func TestPowerHistogram_PercentileBounds(t *testing.T) {
	h := NewPowerHistogram(1)

	// one reading in each bin from -51 to 48
	for i := range 100 {
		h.Update(float64(i) - 50.5)
	}
	b := h.GetPercentileBounds()

	// five readings from either end land on bins -47 and 44
	minPower, maxPower := -47.0, 45.0
	margin := (maxPower - minPower) / 10
	assert.InDelta(t, minPower-margin, b.Min, 1e-9)
	assert.InDelta(t, maxPower+margin, b.Max, 1e-9)
	assert.InDelta(t, -1.0, b.Mean, 1e-9)
	assert.Equal(t, b.Mean, b.Reference)
}

func TestPowerHistogram_MinimumRange(t *testing.T) {
	h := NewPowerHistogram(0.1)
	for range 50 {
		h.Update(20.05)
	}
	b := h.GetPercentileBounds()

	// a single populated bin widens to the minimum range around its center
	assert.InDelta(t, minimumRange*1.2, b.Max-b.Min, 1e-9)
	assert.InDelta(t, 20.05, (b.Max+b.Min)/2, 1e-9)
}

func TestPowerHistogram_ScaleDown(t *testing.T) {
	h := NewPowerHistogram(1)
	h.Update(1)
	h.Update(2)
	h.Update(2)
	h.Update(5)

	h.scaleDown()
	assert.Equal(t, uint64(2), h.Count())
	assert.Equal(t, 2, h.minBin)
	assert.Equal(t, 2, h.maxBin)
	assert.Len(t, h.bins, 1)
}
