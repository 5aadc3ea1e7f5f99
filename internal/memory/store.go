package memory

import (
	"context"
	"time"
)

// SearchQuery describes a composite-ranked retrieval against a store.
type SearchQuery struct {
	Embedding     []float32
	K             int
	MinImportance float64
	Sources       []Source   // nil = any source
	Within        *TimeRange // nil = no window
}

// Store is the contract a memory backend must satisfy. One Store handle
// covers one agent's memories; the retrieval layer only reads.
//
// Ordering contracts:
//   - Search returns best-first by the store's composite score; callers
//     must not reorder.
//   - BySource returns ascending timestamp order (most-recent-last), so
//     callers take the tail slice for "most recent n".
//   - ByTimeframe matches timestamps in the half-open interval [start, end).
type Store interface {
	Search(ctx context.Context, q SearchQuery) ([]*Record, error)
	BySource(ctx context.Context, source Source) ([]*Record, error)
	ByTimeframe(ctx context.Context, start, end time.Time) ([]*Record, error)
	All(ctx context.Context) ([]*Record, error)
	Add(ctx context.Context, rec *Record) error
}
