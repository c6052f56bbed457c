package rfi

import (
	"fmt"
	"strings"

	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// ApplyMode selects how flagged bins are removed from a waterfall.
type ApplyMode int

const (
	// ModeExclude masks flagged bins out as missing data.
	ModeExclude ApplyMode = iota
	// ModeFill overwrites flagged bins with their replacement value.
	ModeFill
)

func (m ApplyMode) String() string {
	switch m {
	case ModeExclude:
		return "exclude"
	case ModeFill:
		return "fill"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseApplyMode parses "exclude" or "fill".
func ParseApplyMode(s string) (ApplyMode, error) {
	switch strings.ToLower(s) {
	case "exclude", "":
		return ModeExclude, nil
	case "fill":
		return ModeFill, nil
	default:
		return 0, fmt.Errorf("unknown apply mode: %q", s)
	}
}

// Apply removes every flagged bin of reg from w in place.
func Apply(w *spectrum.Waterfall, reg *Registry, mode ApplyMode) error {
	switch mode {
	case ModeExclude:
		exclude(w, reg)
		return nil
	case ModeFill:
		return fill(w, reg)
	default:
		return fmt.Errorf("unknown apply mode: %d", int(mode))
	}
}

// exclude marks every integration of every flagged bin as missing.
func exclude(w *spectrum.Waterfall, reg *Registry) {
	times, _ := w.Shape()
	for _, bin := range reg.FlaggedBins() {
		for t := 0; t < times; t++ {
			w.SetMissing(t, bin)
		}
	}
}

// fill walks each segment's channel table and flag list together. Both are
// ascending, so every flag and channel is visited once.
func fill(w *spectrum.Waterfall, reg *Registry) error {
	for si := range reg.segments {
		seg := &reg.segments[si]
		flags := seg.Flags

		fi := 0
		for _, ch := range seg.Table {
			for fi < len(flags) && flags[fi].Bin < ch.End {
				if flags[fi].Bin < ch.Start {
					return &GeometryError{Bin: flags[fi].Bin, Segment: si}
				}

				v := replacement(&flags[fi], ch)
				for t := seg.Range.Start; t < seg.Range.End; t++ {
					w.Set(t, flags[fi].Bin, v)
				}
				fi++
			}
		}
		if fi < len(flags) {
			return &GeometryError{Bin: flags[fi].Bin, Segment: si}
		}
	}
	return nil
}
