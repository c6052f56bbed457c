package rfi

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Origin tells where a flagged index came from.
type Origin uint8

const (
	// OriginDetected marks bins flagged by the outlier detector. Their
	// replacement value is looked up in the segment's mask table.
	OriginDetected Origin = iota
	// OriginManual marks bins added by the caller. They carry their own
	// replacement value.
	OriginManual
)

func (o Origin) String() string {
	switch o {
	case OriginDetected:
		return "detected"
	case OriginManual:
		return "manual"
	default:
		return fmt.Sprintf("origin(%d)", o)
	}
}

// FlaggedIndex is a frequency bin scheduled for removal.
type FlaggedIndex struct {
	Bin     int       `json:"bin"`
	Value   float64   `json:"value"`   // Replacement value in linear power
	Segment TimeRange `json:"segment"` // Integrations the bin was flagged in
	Origin  Origin    `json:"origin"`
}

// ChannelMask is the replacement value of one coarse-channel range.
type ChannelMask struct {
	ChannelRange
	Value float64 `json:"value"` // Linear power, NaN when the channel had no valid statistic
}

// MaskTable is an ascending list of channel masks covering the frequency axis.
type MaskTable []ChannelMask

// Lookup returns the position of the channel containing bin.
func (m MaskTable) Lookup(bin int) (int, bool) {
	i := sort.Search(len(m), func(i int) bool { return m[i].End > bin })
	if i < len(m) && m[i].Contains(bin) {
		return i, true
	}
	return 0, false
}

func newMaskTable(layout Layout) MaskTable {
	table := make(MaskTable, len(layout))
	for i, r := range layout {
		table[i] = ChannelMask{ChannelRange: r, Value: math.NaN()}
	}
	return table
}

// Segment groups the flagged bins and mask table of one time range.
type Segment struct {
	Range TimeRange
	Table MaskTable
	Flags []FlaggedIndex // ascending by bin, one entry per bin
}

// Registry stores the flagged indices and mask tables produced by detection
// and manual edits. Without transient masking it holds a single segment
// covering every integration.
type Registry struct {
	transient  bool
	segments   []Segment
	degenerate int
}

// NewRegistry returns a non-transient registry with one segment spanning
// [0, times) over the given layout and no flagged bins. Mask values are
// unknown until detection fills them in.
func NewRegistry(times int, layout Layout) *Registry {
	return &Registry{
		segments: []Segment{{
			Range: TimeRange{Start: 0, End: times},
			Table: newMaskTable(layout),
		}},
	}
}

// Transient reports whether every segment carries its own mask table.
func (r *Registry) Transient() bool {
	return r.transient
}

// Empty reports whether the registry holds no segment, as returned by a
// rejected detection.
func (r *Registry) Empty() bool {
	return len(r.segments) == 0
}

// Segments returns a copy of the segments ordered by time. Changes to the
// returned tables or flags do not reach the registry.
func (r *Registry) Segments() []Segment {
	segments := make([]Segment, len(r.segments))
	for i, s := range r.segments {
		segments[i] = Segment{
			Range: s.Range,
			Table: slices.Clone(s.Table),
			Flags: slices.Clone(s.Flags),
		}
	}
	return segments
}

// Degenerate returns the number of channel statistics that were skipped
// because their trimmed subset was empty or had no spread.
func (r *Registry) Degenerate() int {
	return r.degenerate
}

// Len returns the number of flagged entries across segments.
func (r *Registry) Len() int {
	var n int
	for _, s := range r.segments {
		n += len(s.Flags)
	}
	return n
}

// FlaggedBins returns every flagged bin once, in ascending order.
func (r *Registry) FlaggedBins() []int {
	var bins []int
	for _, s := range r.segments {
		for _, f := range s.Flags {
			bins = append(bins, f.Bin)
		}
	}
	slices.Sort(bins)
	return slices.Compact(bins)
}

// MaskFor returns the replacement value of bin in the given segment. Manual
// entries keep their own value; any other bin takes the value of the channel
// it belongs to.
func (r *Registry) MaskFor(bin, segment int) (float64, error) {
	if segment < 0 || segment >= len(r.segments) {
		return 0, &GeometryError{Bin: bin, Segment: segment}
	}
	s := &r.segments[segment]

	ch, ok := s.Table.Lookup(bin)
	if !ok {
		return 0, &GeometryError{Bin: bin, Segment: segment}
	}

	var flag *FlaggedIndex
	if i, found := s.find(bin); found {
		flag = &s.Flags[i]
	}
	return replacement(flag, s.Table[ch]), nil
}

func replacement(flag *FlaggedIndex, ch ChannelMask) float64 {
	if flag == nil {
		return ch.Value
	}
	if flag.Origin == OriginManual || math.IsNaN(ch.Value) {
		return flag.Value
	}
	return ch.Value
}

// Add registers a flagged bin. In a non-transient registry the entry goes to
// the single segment; in a transient one its Segment must equal the range of
// an existing segment. A bin is stored once per segment: a manual entry
// replaces an existing one, a detected entry never does.
func (r *Registry) Add(f FlaggedIndex) error {
	if r.Empty() {
		return ErrEmptyRegistry
	}

	idx := 0
	if r.transient {
		idx = slices.IndexFunc(r.segments, func(s Segment) bool { return s.Range == f.Segment })
		if idx < 0 {
			return fmt.Errorf("no segment covers %s", f.Segment)
		}
	}

	s := &r.segments[idx]
	if _, ok := s.Table.Lookup(f.Bin); !ok {
		return &GeometryError{Bin: f.Bin, Segment: idx}
	}
	s.insert(f)
	return nil
}

func (s *Segment) find(bin int) (int, bool) {
	return slices.BinarySearchFunc(s.Flags, bin, func(f FlaggedIndex, b int) int {
		return cmp.Compare(f.Bin, b)
	})
}

func (s *Segment) insert(f FlaggedIndex) {
	i, found := s.find(f.Bin)
	switch {
	case !found:
		s.Flags = slices.Insert(s.Flags, i, f)
	case f.Origin == OriginManual:
		s.Flags[i] = f
	}
}
