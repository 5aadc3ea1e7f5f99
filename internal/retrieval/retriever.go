package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/mnemo/internal/clock"
	"github.com/nidhogg/mnemo/internal/embedding"
	"github.com/nidhogg/mnemo/internal/memory"
	"go.uber.org/zap"
)

// ErrInvalidParam marks a retrieval request rejected before touching the
// store. Check with errors.Is.
var ErrInvalidParam = errors.New("invalid retrieval parameter")

// Engine runs contextual memory retrieval for agents. It holds no state
// between calls; every operation is a pure read over the store handle it
// is given.
type Engine struct {
	embedder embedding.Provider
	clock    clock.Clock
	scoring  memory.ScoreConfig
	opts     Options
	logger   *zap.Logger
}

// New creates a retrieval engine.
func New(embedder embedding.Provider, clk clock.Clock, scoring memory.ScoreConfig, opts Options, logger *zap.Logger) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		embedder: embedder,
		clock:    clk,
		scoring:  scoring,
		opts:     opts,
		logger:   logger,
	}
}

// Options returns the engine's policy tuning.
func (e *Engine) Options() Options { return e.opts }

// Params constrains a generic relevance query.
type Params struct {
	K             int             `json:"k"`
	MinImportance float64         `json:"min_importance"`
	WindowHours   int             `json:"window_hours"` // 0 = no window
	Sources       []memory.Source `json:"sources,omitempty"`
}

func (p Params) validate() error {
	if p.K <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidParam, p.K)
	}
	if p.MinImportance < 0 || p.MinImportance > 10 {
		return fmt.Errorf("%w: min_importance must be in [0,10], got %g", ErrInvalidParam, p.MinImportance)
	}
	if p.WindowHours < 0 {
		return fmt.Errorf("%w: window_hours must not be negative, got %d", ErrInvalidParam, p.WindowHours)
	}
	if p.Sources != nil && len(p.Sources) == 0 {
		return fmt.Errorf("%w: source filter must not be empty", ErrInvalidParam)
	}
	for _, src := range p.Sources {
		if !memory.ValidSource(src) {
			return fmt.Errorf("%w: unknown source %q", ErrInvalidParam, src)
		}
	}
	return nil
}

// Relevant embeds the query text and delegates to the store's composite
// search. The query is embedded fresh on every call and never added to
// the embedder's corpus. The store's best-first order is forwarded
// untouched; only the filters are applied.
func (e *Engine) Relevant(ctx context.Context, st memory.Store, query string, p Params) ([]*memory.Record, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	q := memory.SearchQuery{
		Embedding:     vec,
		K:             p.K,
		MinImportance: p.MinImportance,
		Sources:       p.Sources,
	}
	if p.WindowHours > 0 {
		now := e.clock.Now()
		q.Within = &memory.TimeRange{
			Start: now.Add(-time.Duration(p.WindowHours) * time.Hour),
			End:   now,
		}
	}

	recs, err := st.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("composite search: %w", err)
	}
	if e.logger != nil {
		e.logger.Debug("relevance query",
			zap.Int("k", p.K),
			zap.Int("results", len(recs)))
	}
	return recs, nil
}

// FilterByRelevance keeps only records whose composite score against the
// precomputed query embedding reaches minRelevance. Records without an
// embedding are dropped silently. Input order is preserved; nothing is
// re-ranked.
func (e *Engine) FilterByRelevance(memories []*memory.Record, queryEmbedding []float32, minRelevance float64) []*memory.Record {
	now := e.clock.Now()
	var out []*memory.Record
	for _, rec := range memories {
		if len(rec.Embedding) == 0 {
			continue
		}
		if e.scoring.Composite(rec, queryEmbedding, now) >= minRelevance {
			out = append(out, rec)
		}
	}
	return out
}

// EmbedQuery exposes one-shot query embedding for callers that want to
// pair retrieval with FilterByRelevance.
func (e *Engine) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.embedQuery(ctx, query)
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}
