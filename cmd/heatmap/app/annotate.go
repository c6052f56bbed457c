package app

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const (
	dpi            = 120.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0 // Horizontal distance between frequency labels
	pixelsPerRow   = 40    // Minimum vertical distance between time labels
)

type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, spec *SpectrumData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *SpectrumData) error
	}{
		{"drawing frequency scale", a.drawFrequencyScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, spec); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, spec *SpectrumData) error {
	bandwidth := spec.FrequencyMax - spec.FrequencyMin
	if bandwidth <= 0 || spec.Width < 2 {
		return nil
	}

	freqStep := calculateNiceFrequencyStep(bandwidth, spec.Width)
	startFreq := math.Ceil(spec.FrequencyMin/freqStep) * freqStep

	textY := a.config.Borders.Top - a.fontHeight()/2

	for freq := startFreq; freq <= spec.FrequencyMax; freq += freqStep {
		// Bin centers span Width-1 pixels
		xRatio := (freq - spec.FrequencyMin) / bandwidth
		x := a.config.Borders.Left + int(math.Round(xRatio*float64(spec.Width-1)))

		for y := a.config.Borders.Top - tickMarkHeight; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, spec *SpectrumData) error {
	metrics := a.fontFace.Metrics()
	fontHeight := a.fontHeight()

	rowStep, label := a.integrationLabels(spec)
	for y := 0; y < spec.Height; y += rowStep {
		imgY := y + a.config.Borders.Top

		for x := a.config.Borders.Left - tickMarkHeight; x < a.config.Borders.Left; x++ {
			img.Set(x, imgY, color.Black)
		}

		// Center text vertically relative to the tick mark position
		textY := imgY + fontHeight/2 - metrics.Descent.Round()
		if _, err := a.context.DrawString(label(y), freetype.Pt(10, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

// integrationLabels returns the row distance between time labels and the
// label of a row. Rows are labelled with wall-clock time when the waterfall
// carries timing, and with the integration index otherwise.
func (a *annotator) integrationLabels(spec *SpectrumData) (int, func(int) string) {
	if !spec.Timed() {
		step := calculateNiceIndexStep(spec.Height)
		return step, func(row int) string { return "#" + humanize.Comma(int64(row)) }
	}

	duration := spec.TimestampEnd.Sub(spec.TimestampStart)
	timeStep := calculateNiceTimeStep(max(duration/8, pixelsPerRow*spec.SampleInterval))
	step := max(int(timeStep/spec.SampleInterval), pixelsPerRow)

	return step, func(row int) string {
		ts := spec.TimestampStart.Add(time.Duration(row) * spec.SampleInterval)
		return ts.In(a.config.Location).Format(a.config.TimeFormat)
	}
}

func (a *annotator) drawInfoBar(img *image.RGBA, spec *SpectrumData) error {
	var sb strings.Builder

	if spec.SourceName != "" {
		sb.WriteString(spec.SourceName)
		sb.WriteString("; ")
	}
	sb.WriteString(formatFrequencyRange(spec.FrequencyMin, spec.FrequencyMax))
	sb.WriteString("; ")

	if spec.Timed() {
		sb.WriteString(fmt.Sprintf("Time: %s - %s",
			spec.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
			spec.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))
	} else {
		sb.WriteString(fmt.Sprintf("Integrations: %s", humanize.Comma(int64(spec.Height))))
	}

	if spec.Width > 1 {
		freqPerPixel := (spec.FrequencyMax - spec.FrequencyMin) / float64(spec.Width-1)
		sb.WriteString("; ")
		sb.WriteString(fmt.Sprintf("1px = %s", formatFrequency(freqPerPixel)))
		if spec.SampleInterval > 0 {
			sb.WriteString(fmt.Sprintf(" x %s", spec.SampleInterval))
		}
	}

	sb.WriteString(fmt.Sprintf("; Power: %.1f - %.1f dB", spec.Bounds.Min, spec.Bounds.Max))
	if spec.MissingSamples > 0 {
		sb.WriteString(fmt.Sprintf("; Missing: %s", humanize.Comma(int64(spec.MissingSamples))))
	}

	metrics := a.fontFace.Metrics()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// Helper functions

// calculateNiceFrequencyStep picks a 1-2-5 step in Hz giving roughly one label
// per pixelsPerLabel pixels.
func calculateNiceFrequencyStep(bandwidth float64, width int) float64 {
	desiredSteps := max(float64(width)/pixelsPerLabel, 1)
	targetStep := bandwidth / desiredSteps

	decade := math.Pow(10, math.Floor(math.Log10(targetStep)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * decade; step >= targetStep {
			return step
		}
	}
	return 10 * decade
}

// calculateNiceIndexStep picks a 1-2-5 row step giving roughly eight labels,
// at least pixelsPerRow apart.
func calculateNiceIndexStep(height int) int {
	target := max(height/8, pixelsPerRow)
	for decade := 1; ; decade *= 10 {
		for _, m := range []int{1, 2, 5} {
			if step := m * decade; step >= target {
				return step
			}
		}
	}
}

func formatFrequency(freq float64) string {
	return humanize.SIWithDigits(freq, 4, "Hz")
}

func formatFrequencyRange(min, max float64) string {
	return fmt.Sprintf("Freq: %s - %s", formatFrequency(min), formatFrequency(max))
}

func calculateNiceTimeStep(roughStep time.Duration) time.Duration {
	// Nice time intervals
	niceIntervals := []time.Duration{
		time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
		time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
		2 * time.Hour,
		4 * time.Hour,
	}

	// Find the first interval larger than our rough step
	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return interval
		}
	}

	return time.Hour * 6 // Default for very long durations
}
