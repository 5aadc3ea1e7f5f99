package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemStore is an in-process Store for a single agent. It backs unit
// tests and serves as the degraded mode when Postgres or Qdrant are
// unavailable at boot.
type InMemStore struct {
	mu       sync.RWMutex
	records  []*Record
	bySource map[Source][]*Record
	scoring  ScoreConfig
	now      func() time.Time
}

// NewInMemStore creates an empty store scored with cfg. The now func
// supplies the reference time for recency decay.
func NewInMemStore(cfg ScoreConfig, now func() time.Time) *InMemStore {
	if now == nil {
		now = time.Now
	}
	return &InMemStore{
		bySource: make(map[Source][]*Record),
		scoring:  cfg,
		now:      now,
	}
}

// Add appends a record. Insertion order is assumed to follow timestamp
// order, matching the BySource most-recent-last contract.
func (s *InMemStore) Add(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	s.bySource[rec.Source] = append(s.bySource[rec.Source], rec)
	return nil
}

// Search filters by importance, source, and window, then ranks the
// survivors by composite score, best-first, returning at most q.K.
func (s *InMemStore) Search(_ context.Context, q SearchQuery) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sourceSet map[Source]bool
	if len(q.Sources) > 0 {
		sourceSet = make(map[Source]bool, len(q.Sources))
		for _, src := range q.Sources {
			sourceSet[src] = true
		}
	}

	var candidates []*Record
	for _, rec := range s.records {
		if rec.Importance < q.MinImportance {
			continue
		}
		if sourceSet != nil && !sourceSet[rec.Source] {
			continue
		}
		if q.Within != nil && !q.Within.Contains(rec.Timestamp) {
			continue
		}
		candidates = append(candidates, rec)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := s.now()
	scores := make(map[string]float64, len(candidates))
	for _, rec := range candidates {
		scores[rec.ID] = s.scoring.Composite(rec, q.Embedding, now)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores[candidates[i].ID] > scores[candidates[j].ID]
	})

	if q.K > 0 && len(candidates) > q.K {
		candidates = candidates[:q.K]
	}
	return candidates, nil
}

// BySource returns records of one source in ascending timestamp order.
func (s *InMemStore) BySource(_ context.Context, source Source) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.bySource[source]
	out := make([]*Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// ByTimeframe returns records with timestamps in [start, end).
func (s *InMemStore) ByTimeframe(_ context.Context, start, end time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window := TimeRange{Start: start, End: end}
	var out []*Record
	for _, rec := range s.records {
		if window.Contains(rec.Timestamp) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// All returns every record in insertion order.
func (s *InMemStore) All(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Len reports the number of stored records.
func (s *InMemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
