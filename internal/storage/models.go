package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/rfi-cleaner/internal/rfi"
	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// ObservationInfo describes a stored observation without its samples.
type ObservationInfo struct {
	ID           int64
	ParentID     *int64 // Observation this one was cleaned from
	CreatedAt    time.Time
	Header       spectrum.Header
	Integrations int
}

// Integration is one stored time row of an observation.
type Integration struct {
	Index   int
	Power   []float64
	Missing []bool // nil when no sample of the row is missing
}

// CleaningRun records one pass of the cleaning pipeline over an observation.
type CleaningRun struct {
	ID                   uuid.UUID // Assigned on save when zero
	ObservationID        int64
	CleanedObservationID *int64
	CreatedAt            time.Time
	Mode                 rfi.ApplyMode
	Params               rfi.Params
	FlaggedBins          []int
	ManualBins           int // Bins added by frequency cuts
	CutSamples           int // Samples masked by rectangle cuts
	DegenerateChannels   int
}

type observationData struct {
	ID                 int64
	ParentID           sql.NullInt64
	CreatedAt          time.Time
	SourceName         string
	StartTime          sql.NullInt64
	SampleInterval     int64
	FrequencyOrigin    float64
	FrequencyIncrement float64
	ChannelCount       int
	CoarseChannelCount int
	Integrations       int
}

type cleaningRunData struct {
	ID                   string
	ObservationID        int64
	CleanedObservationID sql.NullInt64
	CreatedAt            time.Time
	Mode                 string
	Params               string
	FlaggedBins          string
	ManualBins           int
	CutSamples           int
	DegenerateChannels   int
}
