package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/rfi-cleaner/internal/rfi"
	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
	"github.com/roman-kulish/rfi-cleaner/internal/storage"
)

// WithLogger sets the logger of the cleaner.
func WithLogger(logger *slog.Logger) func(*Cleaner) {
	return func(c *Cleaner) {
		c.logger = logger
	}
}

// WithWorkers sets the number of goroutines used for detection. Zero keeps
// the detector default.
func WithWorkers(n int) func(*Cleaner) {
	return func(c *Cleaner) {
		c.workers = n
	}
}

// Report summarises one cleaning run.
type Report struct {
	RunID                uuid.UUID
	ObservationID        int64
	CleanedObservationID int64
	FlaggedBins          int
	ManualBins           int
	CutSamples           int
	DegenerateChannels   int
	MissingSamples       int
	PowerBefore          float64
	PowerAfter           float64
}

// Cleaner loads an observation, flags and removes interference and stores
// the cleaned copy along with a record of the run.
type Cleaner struct {
	store   storage.Store
	logger  *slog.Logger
	workers int
}

// NewCleaner creates a new Cleaner
func NewCleaner(store storage.Store, options ...func(*Cleaner)) *Cleaner {
	c := Cleaner{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Clean runs the pipeline described by config over its observation.
func (c *Cleaner) Clean(ctx context.Context, config *Config) (*Report, error) {
	mode, err := rfi.ParseApplyMode(config.Apply.Mode)
	if err != nil {
		return nil, err
	}

	w, err := c.store.Observation(ctx, config.Observation)
	if err != nil {
		return nil, fmt.Errorf("loading observation %d: %w", config.Observation, err)
	}

	times, chans := w.Shape()
	lo, hi := w.Header.Frequency(0), w.Header.Frequency(chans-1)
	c.logger.Info("observation loaded",
		slog.Int64("id", config.Observation),
		slog.String("source", w.Header.SourceName),
		slog.Int("integrations", times),
		slog.Int("channels", chans),
		slog.String("span", fmt.Sprintf("%s - %s", formatMHz(min(lo, hi)), formatMHz(max(lo, hi)))),
	)

	reg, err := rfi.Detect(ctx, w, config.Detection, rfi.WithLogger(c.logger), rfi.WithWorkers(c.workers))
	if err != nil {
		return nil, fmt.Errorf("detecting interference: %w", err)
	}
	detected := len(reg.FlaggedBins())

	manual, err := c.addCuts(w, reg, config.Cuts)
	if err != nil {
		return nil, err
	}

	cleaned := w.Clone()
	cut, err := c.cutRectangles(cleaned, config.Rectangles)
	if err != nil {
		return nil, err
	}

	if err = rfi.Apply(cleaned, reg, mode); err != nil {
		return nil, fmt.Errorf("applying mask: %w", err)
	}

	cleanedID, err := c.store.SaveObservation(ctx, cleaned, storage.WithParent(config.Observation))
	if err != nil {
		return nil, fmt.Errorf("storing cleaned observation: %w", err)
	}

	report := Report{
		ObservationID:        config.Observation,
		CleanedObservationID: cleanedID,
		FlaggedBins:          len(reg.FlaggedBins()),
		ManualBins:           manual,
		CutSamples:           cut,
		DegenerateChannels:   reg.Degenerate(),
		MissingSamples:       cleaned.MissingCount(),
		PowerBefore:          w.TotalPower(),
		PowerAfter:           cleaned.TotalPower(),
	}

	report.RunID, err = c.store.SaveCleaningRun(ctx, storage.CleaningRun{
		ObservationID:        config.Observation,
		CleanedObservationID: &cleanedID,
		Mode:                 mode,
		Params:               config.Detection,
		FlaggedBins:          reg.FlaggedBins(),
		ManualBins:           manual,
		CutSamples:           cut,
		DegenerateChannels:   reg.Degenerate(),
	})
	if err != nil {
		return nil, fmt.Errorf("storing cleaning run: %w", err)
	}

	c.logger.Info("observation cleaned",
		slog.String("run", report.RunID.String()),
		slog.Int64("cleaned", cleanedID),
		slog.String("mode", mode.String()),
		slog.Group("bins",
			slog.Int("detected", detected),
			slog.Int("manual", manual),
			slog.Int("total", report.FlaggedBins),
		),
		slog.Group("samples",
			slog.String("cut", humanize.Comma(int64(cut))),
			slog.String("missing", humanize.Comma(int64(report.MissingSamples))),
		),
		slog.Group("power",
			slog.Float64("before", report.PowerBefore),
			slog.Float64("after", report.PowerAfter),
		),
	)

	return &report, nil
}

func (c *Cleaner) addCuts(w *spectrum.Waterfall, reg *rfi.Registry, cuts []CutConfig) (int, error) {
	var total int
	for i, cut := range cuts {
		var n int
		var err error
		if len(cut.Bins) > 0 {
			n, err = rfi.AddIndices(w, reg, cut.Mask.Mask, cut.Bins...)
		} else {
			n, err = rfi.AddRange(w, reg, *cut.Lower, *cut.Upper, cut.Mask.Mask)
		}
		if err != nil {
			return total, fmt.Errorf("applying cut %d: %w", i, err)
		}

		c.logger.Debug("cut added", slog.Int("cut", i), slog.Int("bins", n), slog.String("mask", cut.Mask.String()))
		total += n
	}
	return total, nil
}

func (c *Cleaner) cutRectangles(w *spectrum.Waterfall, regions []spectrum.Region) (int, error) {
	var total int
	for i, r := range regions {
		n, err := w.CutRegion(r)
		if err != nil {
			return total, fmt.Errorf("cutting rectangle %d: %w", i, err)
		}

		c.logger.Debug("rectangle cut", slog.Int("rectangle", i), slog.Int("samples", n))
		total += n
	}
	return total, nil
}

func formatMHz(mhz float64) string {
	v, prefix := humanize.ComputeSI(mhz * 1e6)
	return fmt.Sprintf("%.3f %sHz", v, prefix)
}
