package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/mnemo/internal/memory"
	"go.uber.org/zap"
)

// searchOversample pulls more nearest-neighbor candidates than requested
// so that importance/window/source filtering still leaves enough rows.
const searchOversample = 4

// searchFloor is the minimum candidate pull regardless of K.
const searchFloor = 64

// agentView is the per-agent memory.Store over the shared backend.
type agentView struct {
	store   *Store
	agentID string
}

const recordColumns = `id, agent_id, text, ts, importance, source, embedding, keywords`

// Add persists the record and indexes its embedding.
func (v *agentView) Add(ctx context.Context, rec *memory.Record) error {
	_, err := v.store.db.Exec(ctx, `
		INSERT INTO records (id, agent_id, text, ts, importance, source, embedding, keywords)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, v.agentID, rec.Text, rec.Timestamp, rec.Importance, string(rec.Source), rec.Embedding, rec.Keywords,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if v.store.index != nil && len(rec.Embedding) > 0 {
		if err := v.store.index.Upsert(ctx, rec.ID, v.agentID, rec.Embedding); err != nil {
			return fmt.Errorf("index record: %w", err)
		}
	}
	return nil
}

// BySource returns one source's records in ascending timestamp order.
func (v *agentView) BySource(ctx context.Context, source memory.Source) ([]*memory.Record, error) {
	rows, err := v.store.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE agent_id = $1 AND source = $2
		ORDER BY ts ASC`, v.agentID, string(source))
	if err != nil {
		return nil, fmt.Errorf("records by source: %w", err)
	}
	return scanRecords(rows)
}

// ByTimeframe returns records with timestamps in [start, end).
func (v *agentView) ByTimeframe(ctx context.Context, start, end time.Time) ([]*memory.Record, error) {
	rows, err := v.store.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE agent_id = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC`, v.agentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("records by timeframe: %w", err)
	}
	return scanRecords(rows)
}

// All returns every record of the agent in ascending timestamp order.
func (v *agentView) All(ctx context.Context) ([]*memory.Record, error) {
	rows, err := v.store.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE agent_id = $1
		ORDER BY ts ASC`, v.agentID)
	if err != nil {
		return nil, fmt.Errorf("all records: %w", err)
	}
	return scanRecords(rows)
}

// Search runs the composite-ranked retrieval. With a query embedding and
// a live index, candidates come from Qdrant, falling back to a full row
// scan when the filtered pull cannot fill K; otherwise the agent's rows
// are scanned directly. Either way the contract filters apply before
// ranking, so no result can violate them.
func (v *agentView) Search(ctx context.Context, q memory.SearchQuery) ([]*memory.Record, error) {
	var candidates []*memory.Record

	if v.store.index != nil && len(q.Embedding) > 0 {
		hits, err := v.vectorCandidates(ctx, q)
		if err != nil {
			return nil, err
		}
		candidates = applyFilters(hits, q)
		// The oversampled pull is an approximation: qualifying rows can
		// hide behind nearer neighbors the filters reject. Rescan the
		// agent's rows whenever the pull comes up short of K.
		if q.K > 0 && len(candidates) < q.K {
			all, err := v.All(ctx)
			if err != nil {
				return nil, err
			}
			candidates = applyFilters(all, q)
		}
	} else {
		all, err := v.All(ctx)
		if err != nil {
			return nil, err
		}
		candidates = applyFilters(all, q)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := v.store.now()
	scores := make(map[string]float64, len(candidates))
	for _, rec := range candidates {
		scores[rec.ID] = v.store.scoring.Composite(rec, q.Embedding, now)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores[candidates[i].ID] > scores[candidates[j].ID]
	})

	if q.K > 0 && len(candidates) > q.K {
		candidates = candidates[:q.K]
	}
	return candidates, nil
}

// vectorCandidates pulls an oversampled nearest-neighbor set from the
// index and hydrates the rows from PostgreSQL.
func (v *agentView) vectorCandidates(ctx context.Context, q memory.SearchQuery) ([]*memory.Record, error) {
	pull := q.K * searchOversample
	if pull < searchFloor {
		pull = searchFloor
	}
	hits, err := v.store.index.Search(ctx, v.agentID, q.Embedding, uint64(pull))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.RecordID
	}
	rows, err := v.store.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE agent_id = $1 AND id = ANY($2)`, v.agentID, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate candidates: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) < len(hits) {
		v.store.logger.Debug("index ahead of record table",
			zap.String("agent", v.agentID),
			zap.Int("hits", len(hits)),
			zap.Int("hydrated", len(recs)))
	}
	return recs, nil
}

func applyFilters(recs []*memory.Record, q memory.SearchQuery) []*memory.Record {
	var sourceSet map[memory.Source]bool
	if len(q.Sources) > 0 {
		sourceSet = make(map[memory.Source]bool, len(q.Sources))
		for _, src := range q.Sources {
			sourceSet[src] = true
		}
	}

	var out []*memory.Record
	for _, rec := range recs {
		if rec.Importance < q.MinImportance {
			continue
		}
		if sourceSet != nil && !sourceSet[rec.Source] {
			continue
		}
		if q.Within != nil && !q.Within.Contains(rec.Timestamp) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func scanRecords(rows pgx.Rows) ([]*memory.Record, error) {
	defer rows.Close()

	var recs []*memory.Record
	for rows.Next() {
		rec := &memory.Record{}
		var source string
		if err := rows.Scan(&rec.ID, &rec.AgentID, &rec.Text, &rec.Timestamp,
			&rec.Importance, &source, &rec.Embedding, &rec.Keywords); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Source = memory.Source(source)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
