package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// Store provides an interface for persisting waterfall observations and the
// cleaning runs performed on them. Write operations are atomic.
type Store interface {
	// SaveObservation stores a waterfall, its missing-data mask included, and
	// returns the identifier of the new observation.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - w: Waterfall to store
	//   - opts: Optional settings (WithParent links a cleaned copy to its source)
	//
	// Returns:
	//   - observationID: Unique identifier of the stored observation
	//   - error: If storage fails or context is cancelled
	SaveObservation(ctx context.Context, w *spectrum.Waterfall, opts ...SaveOption) (observationID int64, err error)

	// Observation loads a stored observation into memory.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique observation identifier
	//
	// Returns:
	//   - w: The waterfall with its missing-data mask
	//   - error: ErrNoData if the observation does not exist, or if retrieval fails
	Observation(ctx context.Context, id int64) (w *spectrum.Waterfall, err error)

	// Observations returns the metadata of every stored observation, ordered
	// by identifier.
	Observations(ctx context.Context) (observations []*ObservationInfo, err error)

	// SaveCleaningRun records a cleaning run. A zero run ID is replaced with a
	// new time-ordered UUID, which is returned.
	SaveCleaningRun(ctx context.Context, run CleaningRun) (id uuid.UUID, err error)

	// CleaningRuns returns the runs recorded for an observation, oldest first.
	CleaningRuns(ctx context.Context, observationID int64) (runs []*CleaningRun, err error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
