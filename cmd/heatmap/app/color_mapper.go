package app

import (
	"image/color"
	"math"
)

// ColorTheme names a gradient used to draw power levels.
type ColorTheme string

const (
	DefaultTheme   ColorTheme = "default"   // Dark blue to cyan to yellow to red
	ClassicTheme   ColorTheme = "classic"   // Rainbow from blue to red
	GrayscaleTheme ColorTheme = "grayscale" // Black to white
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to pale cyan

	DefaultColorMapSize = 256 // Default number of precomputed colors
)

// MissingSampleColor is drawn for samples that are masked out, cut or carry
// no positive power.
var MissingSampleColor color.Color = color.Black

// colorStop pins a color at a normalized position of a gradient.
type colorStop struct {
	pos float64
	rgb color.RGBA
}

var colorThemes = map[ColorTheme][]colorStop{
	DefaultTheme: {
		{0, color.RGBA{R: 0, G: 0, B: 48, A: 255}},
		{0.25, color.RGBA{R: 0, G: 0, B: 255, A: 255}},
		{0.5, color.RGBA{R: 0, G: 255, B: 255, A: 255}},
		{0.75, color.RGBA{R: 255, G: 255, B: 0, A: 255}},
		{1, color.RGBA{R: 255, G: 0, B: 0, A: 255}},
	},
	ClassicTheme: {
		{0, color.RGBA{R: 0, G: 0, B: 128, A: 255}},
		{0.25, color.RGBA{R: 0, G: 128, B: 255, A: 255}},
		{0.5, color.RGBA{R: 0, G: 255, B: 128, A: 255}},
		{0.75, color.RGBA{R: 255, G: 255, B: 0, A: 255}},
		{1, color.RGBA{R: 255, G: 0, B: 0, A: 255}},
	},
	GrayscaleTheme: {
		{0, color.RGBA{A: 255}},
		{1, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
	},
	JungleTheme: {
		{0, color.RGBA{R: 0, G: 77, B: 0, A: 255}},
		{0.5, color.RGBA{R: 64, G: 200, B: 0, A: 255}},
		{1, color.RGBA{R: 255, G: 255, B: 0, A: 255}},
	},
	ThermalTheme: {
		{0, color.RGBA{A: 255}},
		{0.33, color.RGBA{R: 255, A: 255}},
		{0.66, color.RGBA{R: 255, G: 255, A: 255}},
		{1, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
	},
	MarineTheme: {
		{0, color.RGBA{R: 0, G: 0, B: 77, A: 255}},
		{0.5, color.RGBA{R: 0, G: 128, B: 200, A: 255}},
		{1, color.RGBA{R: 200, G: 255, B: 255, A: 255}},
	},
}

// KnownTheme reports whether theme names a gradient.
func KnownTheme(theme ColorTheme) bool {
	_, ok := colorThemes[theme]
	return ok
}

// gradient returns the color at position p in [0, 1] by linear
// interpolation between the surrounding stops.
func gradient(stops []colorStop, p float64) color.RGBA {
	if p <= stops[0].pos {
		return stops[0].rgb
	}
	for i := 1; i < len(stops); i++ {
		hi := stops[i]
		if p > hi.pos {
			continue
		}
		lo := stops[i-1]
		f := (p - lo.pos) / (hi.pos - lo.pos)
		mix := func(a, b uint8) uint8 {
			return uint8(math.Round(float64(a) + f*(float64(b)-float64(a))))
		}
		return color.RGBA{R: mix(lo.rgb.R, hi.rgb.R), G: mix(lo.rgb.G, hi.rgb.G), B: mix(lo.rgb.B, hi.rgb.B), A: 255}
	}
	return stops[len(stops)-1].rgb
}

// ColorMapper maps dB power to a theme color through a precomputed table
// spanning the power bounds.
type ColorMapper struct {
	table   []color.RGBA
	minDB   float64
	perStep float64 // table steps per dB, zero for a collapsed range
}

// NewColorMapper creates a mapper with DefaultColorMapSize colors.
func NewColorMapper(theme ColorTheme, bounds PowerBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a mapper with size precomputed colors. An
// unknown theme falls back to DefaultTheme, a size below two to
// DefaultColorMapSize.
func NewColorMapperWithSize(theme ColorTheme, bounds PowerBounds, size int) *ColorMapper {
	if size < 2 {
		size = DefaultColorMapSize
	}
	stops, ok := colorThemes[theme]
	if !ok {
		stops = colorThemes[DefaultTheme]
	}

	cm := &ColorMapper{table: make([]color.RGBA, size)}
	for i := range cm.table {
		cm.table[i] = gradient(stops, float64(i)/float64(size-1))
	}
	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds moves the power range covered by the table.
func (cm *ColorMapper) UpdateBounds(bounds PowerBounds) {
	cm.minDB = bounds.Min
	cm.perStep = 0
	if span := bounds.Max - bounds.Min; span > 0 {
		cm.perStep = float64(len(cm.table)-1) / span
	}
}

// GetColor returns the color of a dB power reading; nil yields
// MissingSampleColor and readings outside the bounds take the nearest end.
func (cm *ColorMapper) GetColor(power *float64) color.Color {
	if power == nil {
		return MissingSampleColor
	}

	pos := math.Round((*power - cm.minDB) * cm.perStep)
	switch {
	case math.IsNaN(pos) || pos <= 0:
		return cm.table[0]
	case pos >= float64(len(cm.table)-1):
		return cm.table[len(cm.table)-1]
	}
	return cm.table[int(pos)]
}
