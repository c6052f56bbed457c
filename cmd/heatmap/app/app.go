package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rfi-cleaner/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if _, err = os.Stat(config.DBPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
		}
		return fmt.Errorf("checking database file '%s': %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer func() {
		if cErr := store.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing storage: %w", cErr))
		}
	}()

	spec, err := readSpectrum(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer, err := NewSpectrumRenderer(RenderConfig{
		Location:      config.TimeZone,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating spectrum renderer: %w", err)
	}

	logger.Info("rendering spectrum",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", spec.Width),
			slog.Int("height", spec.Height),
		))

	img, err := renderer.Render(spec)
	if err != nil {
		return fmt.Errorf("rendering spectrum: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing output file: %w", cErr))
		}
	}()

	if err = encodeImage(out, img, config.Format); err != nil {
		return fmt.Errorf("encoding %s image: %w", config.Format, err)
	}
	return nil
}

func readSpectrum(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*SpectrumData, error) {
	logger.Info("reading observation", slog.Int64("observation", config.ObservationID))

	w, err := store.Observation(ctx, config.ObservationID)
	if err != nil {
		return nil, fmt.Errorf("reading observation %d: %w", config.ObservationID, err)
	}

	hist := NewPowerHistogram(defaultBinWidth)
	spec := NewSpectrumData(w, hist)
	logger.Debug("power histogram",
		slog.Uint64("samples", hist.Count()),
		slog.String("mean", fmt.Sprintf("%0.2fdB", spec.Bounds.Mean)),
		slog.String("p5", fmt.Sprintf("%0.2fdB", spec.Bounds.Min)),
		slog.String("p95", fmt.Sprintf("%0.2fdB", spec.Bounds.Max)))

	if config.MinPower != nil {
		spec.Bounds.Min = *config.MinPower
	}
	if config.MaxPower != nil {
		spec.Bounds.Max = *config.MaxPower
	}
	if spec.Bounds.Min >= spec.Bounds.Max {
		return nil, fmt.Errorf("power range %.1f - %.1f dB is empty", spec.Bounds.Min, spec.Bounds.Max)
	}

	attrs := []any{
		slog.String("source", spec.SourceName),
		slog.String("minFreq", formatFrequency(spec.FrequencyMin)),
		slog.String("maxFreq", formatFrequency(spec.FrequencyMax)),
		slog.String("minPower", fmt.Sprintf("%0.2fdB", spec.Bounds.Min)),
		slog.String("maxPower", fmt.Sprintf("%0.2fdB", spec.Bounds.Max)),
		slog.String("missing", humanize.Comma(int64(spec.MissingSamples))),
	}
	if spec.Timed() {
		attrs = append(attrs,
			slog.String("minTimestamp", spec.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
			slog.String("maxTimestamp", spec.TimestampEnd.In(config.TimeZone).Format(time.DateTime)))
	}
	logger.Info("finished reading observation", slog.Group("stats", attrs...))

	return spec, nil
}

func encodeImage(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return fmt.Errorf("unsupported image format: %s", format)
}
