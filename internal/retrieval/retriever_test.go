package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nidhogg/mnemo/internal/clock"
	"github.com/nidhogg/mnemo/internal/embedding"
	"github.com/nidhogg/mnemo/internal/memory"
	"go.uber.org/zap"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestEngine wires an engine with a deterministic corpus embedder
// and a manual clock frozen at base.
func newTestEngine(t *testing.T) (*Engine, *memory.InMemStore, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(base)
	embedder := embedding.NewCorpusProvider(64)
	st := memory.NewInMemStore(memory.DefaultScoreConfig(), clk.Now)
	eng := New(embedder, clk, memory.DefaultScoreConfig(), DefaultOptions(), zap.NewNop())
	return eng, st, clk
}

func addRec(t *testing.T, st *memory.InMemStore, eng *Engine, id, text string, ts time.Time, importance float64, source memory.Source, keywords ...string) *memory.Record {
	t.Helper()
	rec := &memory.Record{
		ID:         id,
		AgentID:    "a1",
		Text:       text,
		Timestamp:  ts,
		Importance: importance,
		Source:     source,
		Keywords:   keywords,
	}
	vec, err := eng.EmbedQuery(context.Background(), text)
	if err != nil {
		t.Fatalf("embed record: %v", err)
	}
	rec.Embedding = vec
	if err := st.Add(context.Background(), rec); err != nil {
		t.Fatalf("add record: %v", err)
	}
	return rec
}

func TestRelevantParamValidation(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		p    Params
	}{
		{"zero k", Params{K: 0}},
		{"negative k", Params{K: -3}},
		{"threshold too high", Params{K: 5, MinImportance: 11}},
		{"threshold negative", Params{K: 5, MinImportance: -1}},
		{"negative window", Params{K: 5, WindowHours: -24}},
		{"empty source set", Params{K: 5, Sources: []memory.Source{}}},
		{"unknown source", Params{K: 5, Sources: []memory.Source{"daydream"}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := eng.Relevant(ctx, st, "anything", c.p)
			if !errors.Is(err, ErrInvalidParam) {
				t.Fatalf("expected ErrInvalidParam, got %v", err)
			}
		})
	}
}

func TestRelevantLengthBound(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		addRec(t, st, eng, string(rune('a'+i)), "routine observation of the office",
			base.Add(-time.Duration(i)*time.Minute), 5, memory.SourceObservation)
	}

	for _, k := range []int{1, 4, 20} {
		got, err := eng.Relevant(ctx, st, "office", Params{K: k})
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if len(got) > k {
			t.Errorf("k=%d: got %d results", k, len(got))
		}
	}
}

func TestRelevantWindowAndThreshold(t *testing.T) {
	eng, st, clk := newTestEngine(t)
	ctx := context.Background()

	addRec(t, st, eng, "recent-high", "signed the supply contract", base.Add(-2*time.Hour), 8, memory.SourceObservation)
	addRec(t, st, eng, "recent-low", "signed a minor form", base.Add(-time.Hour), 2, memory.SourceObservation)
	addRec(t, st, eng, "stale-high", "signed the merger deal", base.Add(-100*time.Hour), 9, memory.SourceObservation)

	got, err := eng.Relevant(ctx, st, "signed contract", Params{K: 10, MinImportance: 5, WindowHours: 48})
	if err != nil {
		t.Fatalf("relevant: %v", err)
	}
	if len(got) != 1 || got[0].ID != "recent-high" {
		t.Fatalf("expected only recent-high, got %v", recIDs(got))
	}

	window := memory.TimeRange{Start: clk.Now().Add(-48 * time.Hour), End: clk.Now()}
	for _, r := range got {
		if !window.Contains(r.Timestamp) {
			t.Errorf("result %s outside window", r.ID)
		}
		if r.Importance < 5 {
			t.Errorf("result %s below threshold", r.ID)
		}
	}
}

func TestRelevantEmptyStore(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	got, err := eng.Relevant(context.Background(), st, "anything", Params{K: 5})
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", recIDs(got))
	}
}

func TestFilterByRelevanceDropsMissingEmbedding(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	query := []float32{1, 0}
	withVec := &memory.Record{ID: "with", Importance: 2, Timestamp: base, Embedding: []float32{1, 0}}
	noVec := &memory.Record{ID: "without", Importance: 10, Timestamp: base}

	got := eng.FilterByRelevance([]*memory.Record{withVec, noVec}, query, 0.1)
	if len(got) != 1 || got[0].ID != "with" {
		t.Fatalf("expected [with], got %v", recIDs(got))
	}
}

func TestFilterByRelevancePreservesOrder(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	query := []float32{1, 0}
	recs := []*memory.Record{
		{ID: "first", Importance: 1, Timestamp: base, Embedding: []float32{0.9, 0.1}},
		{ID: "second", Importance: 9, Timestamp: base, Embedding: []float32{1, 0}},
	}

	got := eng.FilterByRelevance(recs, query, 0.1)
	if len(got) != 2 || got[0].ID != "first" || got[1].ID != "second" {
		t.Fatalf("input order not preserved: %v", recIDs(got))
	}
}

func TestFilterByRelevanceCutoff(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	query := []float32{1, 0}
	// Orthogonal embedding, zero importance, very old: composite near zero.
	weak := &memory.Record{ID: "weak", Importance: 0, Timestamp: base.Add(-1000 * time.Hour), Embedding: []float32{0, 1}}
	strong := &memory.Record{ID: "strong", Importance: 8, Timestamp: base, Embedding: []float32{1, 0}}

	got := eng.FilterByRelevance([]*memory.Record{weak, strong}, query, 0.1)
	if len(got) != 1 || got[0].ID != "strong" {
		t.Fatalf("expected [strong], got %v", recIDs(got))
	}
}

func recIDs(recs []*memory.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
