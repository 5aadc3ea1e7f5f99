package retrieval

// Options carries the per-policy tunables: result caps, importance
// floors, and window sizes. They are configuration, not constants, so
// deployments can retune a policy without touching retrieval code.
type Options struct {
	PlanK              int     `json:"plan_k"`
	PlanMinImportance  float64 `json:"plan_min_importance"`
	PlanWindowHours    int     `json:"plan_window_hours"`
	PlanGoalTail       int     `json:"plan_goal_tail"`       // most recent goal_activity records pulled
	PlanReflectionTail int     `json:"plan_reflection_tail"` // most recent reflection records pulled
	PlanLimit          int     `json:"plan_limit"`

	ReflectPeriodHours   int     `json:"reflect_period_hours"`
	ReflectMinImportance float64 `json:"reflect_min_importance"`

	SocialK             int     `json:"social_k"`
	SocialMinImportance float64 `json:"social_min_importance"`
	SocialLimit         int     `json:"social_limit"`

	SimilarK             int     `json:"similar_k"`
	SimilarMinImportance float64 `json:"similar_min_importance"`

	KnowledgeK             int     `json:"knowledge_k"`
	KnowledgeMinImportance float64 `json:"knowledge_min_importance"`

	MinRelevance     float64 `json:"min_relevance"`
	SummaryMaxLength int     `json:"summary_max_length"`
}

// DefaultOptions returns the standard policy tuning.
func DefaultOptions() Options {
	return Options{
		PlanK:              8,
		PlanMinImportance:  5.0,
		PlanWindowHours:    48,
		PlanGoalTail:       5,
		PlanReflectionTail: 3,
		PlanLimit:          8,

		ReflectPeriodHours:   24,
		ReflectMinImportance: 4.0,

		SocialK:             10,
		SocialMinImportance: 3.0,
		SocialLimit:         8,

		SimilarK:             5,
		SimilarMinImportance: 4.0,

		KnowledgeK:             8,
		KnowledgeMinImportance: 5.0,

		MinRelevance:     0.1,
		SummaryMaxLength: 500,
	}
}
