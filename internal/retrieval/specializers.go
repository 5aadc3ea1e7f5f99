package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nidhogg/mnemo/internal/memory"
)

// ForPlanning retrieves memories for a planning pass. One broad
// relevance query over the context expanded with the agent's goals,
// unioned with the most recent goal-activity and reflection records —
// planning needs explicitly agenda-linked memories even when their
// similarity to the planning context is near zero. Re-ranked by
// salience rather than pure similarity.
func (e *Engine) ForPlanning(ctx context.Context, st memory.Store, planningContext string, goals []string) ([]*memory.Record, error) {
	query := planningContext
	if len(goals) > 0 {
		query += " considering goals: " + strings.Join(goals, " ")
	}

	broad, err := e.Relevant(ctx, st, query, Params{
		K:             e.opts.PlanK,
		MinImportance: e.opts.PlanMinImportance,
		WindowHours:   e.opts.PlanWindowHours,
	})
	if err != nil {
		return nil, err
	}

	goalRecs, err := st.BySource(ctx, memory.SourceGoalActivity)
	if err != nil {
		return nil, fmt.Errorf("goal_activity lookup: %w", err)
	}
	reflectRecs, err := st.BySource(ctx, memory.SourceReflection)
	if err != nil {
		return nil, fmt.Errorf("reflection lookup: %w", err)
	}

	return rank(bySalience, e.opts.PlanLimit,
		broad,
		tail(goalRecs, e.opts.PlanGoalTail),
		tail(reflectRecs, e.opts.PlanReflectionTail),
	), nil
}

// ForReflection sweeps the recent period and keeps only significant
// memories, sorted by importance. There is no semantic query: reflection
// is a periodic review of salient recent events, not a targeted search.
// A periodHours of 0 uses the configured default.
func (e *Engine) ForReflection(ctx context.Context, st memory.Store, periodHours int) ([]*memory.Record, error) {
	if periodHours == 0 {
		periodHours = e.opts.ReflectPeriodHours
	}
	if periodHours < 0 {
		return nil, fmt.Errorf("%w: period_hours must not be negative, got %d", ErrInvalidParam, periodHours)
	}

	now := e.clock.Now()
	start := now.Add(-time.Duration(periodHours) * time.Hour)
	recs, err := st.ByTimeframe(ctx, start, now)
	if err != nil {
		return nil, fmt.Errorf("timeframe lookup: %w", err)
	}

	var significant []*memory.Record
	for _, rec := range recs {
		if rec.Importance >= e.opts.ReflectMinImportance {
			significant = append(significant, rec)
		}
	}
	sort.SliceStable(significant, func(i, j int) bool {
		return significant[i].Importance > significant[j].Importance
	})
	return significant, nil
}

// ForSocial retrieves memories about interacting with another agent.
// The semantic query is backed by a literal scan for the agent's name in
// keywords or text, catching records the embedding search misses.
// Freshness dominates the final order: the latest interaction matters
// more than the most salient one.
func (e *Engine) ForSocial(ctx context.Context, st memory.Store, otherAgent, interactionContext string) ([]*memory.Record, error) {
	if strings.TrimSpace(otherAgent) == "" {
		return nil, fmt.Errorf("%w: other agent name must not be empty", ErrInvalidParam)
	}

	query := strings.TrimSpace("interaction with " + otherAgent + " " + interactionContext)
	relevant, err := e.Relevant(ctx, st, query, Params{
		K:             e.opts.SocialK,
		MinImportance: e.opts.SocialMinImportance,
	})
	if err != nil {
		return nil, err
	}

	all, err := st.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("record scan: %w", err)
	}
	name := strings.ToLower(otherAgent)
	var mentions []*memory.Record
	for _, rec := range all {
		if mentionsAgent(rec, name) {
			mentions = append(mentions, rec)
		}
	}

	return rank(byFreshness, e.opts.SocialLimit, relevant, mentions), nil
}

// mentionsAgent reports whether the lowercased agent name appears as a
// keyword or inside the record text.
func mentionsAgent(rec *memory.Record, lowerName string) bool {
	for _, kw := range rec.Keywords {
		if strings.ToLower(kw) == lowerName {
			return true
		}
	}
	return strings.Contains(strings.ToLower(rec.Text), lowerName)
}

// SimilarExperiences is a pure semantic query for analogical recall:
// moderate importance floor, no time window, no source filter. A k of 0
// uses the configured default.
func (e *Engine) SimilarExperiences(ctx context.Context, st memory.Store, situation string, k int) ([]*memory.Record, error) {
	if k == 0 {
		k = e.opts.SimilarK
	}
	return e.Relevant(ctx, st, situation, Params{
		K:             k,
		MinImportance: e.opts.SimilarMinImportance,
	})
}

// knowledgeSources are the distilled memory kinds preferred for topic
// knowledge, excluding raw conversational and event records.
var knowledgeSources = []memory.Source{
	memory.SourceReflection,
	memory.SourceInsight,
	memory.SourceLearning,
	memory.SourceObservation,
}

// ForKnowledge retrieves contextual knowledge about a topic from
// distilled memory kinds. An empty knowledgeType defaults to "general".
func (e *Engine) ForKnowledge(ctx context.Context, st memory.Store, topic, knowledgeType string) ([]*memory.Record, error) {
	if knowledgeType == "" {
		knowledgeType = "general"
	}
	query := fmt.Sprintf("%s knowledge about %s", knowledgeType, topic)
	return e.Relevant(ctx, st, query, Params{
		K:             e.opts.KnowledgeK,
		MinImportance: e.opts.KnowledgeMinImportance,
		Sources:       knowledgeSources,
	})
}
