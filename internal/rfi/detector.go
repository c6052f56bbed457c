package rfi

import (
	"context"
	"io"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sync"

	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// Params controls outlier detection.
type Params struct {
	// CoarseChanNum is the number of coarse channels grouped into one
	// statistics window.
	CoarseChanNum int `json:"coarseChanNum" yaml:"coarseChanNum"`

	// CentralLower and CentralUpper bound the fraction of sorted samples kept
	// when computing the channel median, e.g. 0.2 and 0.8 drop the bottom and
	// top 20%.
	CentralLower float64 `json:"centralLower" yaml:"centralLower"`
	CentralUpper float64 `json:"centralUpper" yaml:"centralUpper"`

	// Sigma is the z-score above which a bin is flagged.
	Sigma float64 `json:"sigma" yaml:"sigma"`

	// Aggregate is the number of blocks the time axis is split into. Each
	// block is reduced to its median spectrum before thresholding.
	Aggregate int `json:"aggregate" yaml:"aggregate"`

	// Transient keeps one mask table and flag list per block instead of
	// merging them into a single segment.
	Transient bool `json:"transient" yaml:"transient"`

	// ReferenceTime selects the block whose mask table is kept when
	// Transient is false.
	ReferenceTime int `json:"referenceTime" yaml:"referenceTime"`
}

// DefaultParams returns the parameters used by the reference pipeline.
func DefaultParams() Params {
	return Params{
		CoarseChanNum: 15,
		CentralLower:  0.2,
		CentralUpper:  0.8,
		Sigma:         10,
		Aggregate:     1,
	}
}

// Validate checks p against the geometry of w.
func (p Params) Validate(w *spectrum.Waterfall) error {
	times, _ := w.Shape()

	switch {
	case p.Aggregate > times:
		return newValidationError("aggregate", "%d exceeds the number of integrations (%d)", p.Aggregate, times)
	case p.Aggregate < 1:
		return newValidationError("aggregate", "must be a positive integer, got %d", p.Aggregate)
	case p.CentralLower > p.CentralUpper:
		return newValidationError("centralLower", "%v is greater than centralUpper %v", p.CentralLower, p.CentralUpper)
	case p.CentralLower < 0 || p.CentralUpper > 1:
		return newValidationError("central", "bounds [%v, %v] must lie within [0, 1]", p.CentralLower, p.CentralUpper)
	case p.CoarseChanNum > w.CoarseChannelCount():
		return newValidationError("coarseChanNum", "%d exceeds the number of coarse channels (%d)", p.CoarseChanNum, w.CoarseChannelCount())
	case p.CoarseChanNum < 1:
		return newValidationError("coarseChanNum", "must be a positive integer, got %d", p.CoarseChanNum)
	case math.IsNaN(p.Sigma):
		return newValidationError("sigma", "must be a number")
	case p.ReferenceTime < 0 || p.ReferenceTime >= times:
		return newValidationError("referenceTime", "%d is outside [0, %d)", p.ReferenceTime, times)
	}
	return nil
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger for the detector.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger.With(slog.String("component", "rfi-detector"))
	}
}

// WithWorkers bounds the number of time blocks processed concurrently.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// Detector flags RFI bins in a waterfall.
type Detector struct {
	logger  *slog.Logger
	workers int
}

// NewDetector creates a Detector with a discard logger.
func NewDetector(options ...Option) *Detector {
	d := Detector{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: runtime.NumCPU(),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Detect is a shorthand for NewDetector(options...).Detect.
func Detect(ctx context.Context, w *spectrum.Waterfall, p Params, options ...Option) (*Registry, error) {
	return NewDetector(options...).Detect(ctx, w, p)
}

// blockResult is the raw output of one time block.
type blockResult struct {
	table      MaskTable
	flags      []FlaggedIndex
	degenerate int
}

// Detect flags outlier bins in w. Every time block is reduced to its median
// spectrum; each coarse-channel window of that spectrum is converted to dB,
// trimmed to its central fraction and z-scored, and bins above p.Sigma are
// flagged with the channel median as replacement value.
//
// A parameter that fails validation yields an empty registry together with a
// *ValidationError. Detect never returns partial output.
func (d *Detector) Detect(ctx context.Context, w *spectrum.Waterfall, p Params) (*Registry, error) {
	if err := p.Validate(w); err != nil {
		d.logger.Warn("detection rejected", slog.String("error", err.Error()))
		return &Registry{}, err
	}

	times, chans := w.Shape()
	layout, err := NewLayout(chans, w.FinePerCoarse()*p.CoarseChanNum)
	if err != nil {
		return &Registry{}, err
	}
	blocks, err := SplitTime(times, p.Aggregate)
	if err != nil {
		return &Registry{}, err
	}

	results, err := d.processBlocks(ctx, w, p, layout, blocks)
	if err != nil {
		return &Registry{}, err
	}

	reg := merge(p, times, blocks, results)

	d.logger.Info("detection finished",
		slog.Group("stats",
			slog.Int("blocks", len(blocks)),
			slog.Int("channels", len(layout)),
			slog.Int("flagged", len(reg.FlaggedBins())),
			slog.Int("degenerate", reg.degenerate),
			slog.Bool("transient", p.Transient),
		))

	return reg, nil
}

// processBlocks computes every block concurrently. Results are indexed by
// block so the merge can run in time order.
func (d *Detector) processBlocks(ctx context.Context, w *spectrum.Waterfall, p Params, layout Layout, blocks []TimeRange) ([]blockResult, error) {
	results := make([]blockResult, len(blocks))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(d.workers, len(blocks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = processBlock(w, p, layout, blocks[i])
				d.logger.Debug("block processed",
					slog.String("range", blocks[i].String()),
					slog.Int("flagged", len(results[i].flags)))
			}
		}()
	}

	var err error
	for i := range blocks {
		if err = ctx.Err(); err != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, err
}

func processBlock(w *spectrum.Waterfall, p Params, layout Layout, block TimeRange) blockResult {
	median := w.MedianSpectrum(block.Start, block.End)
	res := blockResult{table: make(MaskTable, len(layout))}

	for ci, ch := range layout {
		db := toDB(median[ch.Start:ch.End])
		st := robustStats(db, p.CentralLower, p.CentralUpper)
		if !st.valid {
			res.degenerate++
		}

		value := Lin(st.median)
		res.table[ci] = ChannelMask{ChannelRange: ch, Value: value}

		for _, off := range outliers(db, st, p.Sigma) {
			res.flags = append(res.flags, FlaggedIndex{
				Bin:     ch.Start + off,
				Value:   value,
				Segment: block,
				Origin:  OriginDetected,
			})
		}
	}
	return res
}

// merge assembles the registry from per-block results in time order. Without
// transient masking the bins are deduplicated first-wins into one segment
// spanning every integration, and the mask table of the block containing the
// reference time is kept.
func merge(p Params, times int, blocks []TimeRange, results []blockResult) *Registry {
	reg := &Registry{transient: p.Transient}
	for _, res := range results {
		reg.degenerate += res.degenerate
	}

	if p.Transient {
		reg.segments = make([]Segment, len(blocks))
		for i, res := range results {
			reg.segments[i] = Segment{Range: blocks[i], Table: res.table, Flags: res.flags}
		}
		return reg
	}

	ref := slices.IndexFunc(blocks, func(b TimeRange) bool { return b.Contains(p.ReferenceTime) })

	seen := make(map[int]struct{})
	var flags []FlaggedIndex
	for _, res := range results {
		for _, f := range res.flags {
			if _, ok := seen[f.Bin]; ok {
				continue
			}
			seen[f.Bin] = struct{}{}
			flags = append(flags, f)
		}
	}
	slices.SortFunc(flags, func(a, b FlaggedIndex) int { return a.Bin - b.Bin })

	reg.segments = []Segment{{
		Range: TimeRange{Start: 0, End: times},
		Table: results[ref].table,
		Flags: flags,
	}}
	return reg
}
