package memory

import (
	"time"

	"github.com/google/uuid"
)

// Source categorizes where a memory record came from.
type Source string

const (
	SourceObservation  Source = "observation"
	SourceConversation Source = "conversation"
	SourceReflection   Source = "reflection"
	SourcePlan         Source = "plan"
	SourceGoalActivity Source = "goal_activity"
	SourceInsight      Source = "insight"
	SourceLearning     Source = "learning"
)

var validSources = map[Source]bool{
	SourceObservation:  true,
	SourceConversation: true,
	SourceReflection:   true,
	SourcePlan:         true,
	SourceGoalActivity: true,
	SourceInsight:      true,
	SourceLearning:     true,
}

// ValidSource reports whether tag is a known source category.
func ValidSource(tag Source) bool {
	return validSources[tag]
}

// Record is a single immutable unit of agent experience.
type Record struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Importance float64   `json:"importance"` // 0-10
	Source     Source    `json:"source"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Keywords   []string  `json:"keywords,omitempty"`
}

// NewRecord creates a record with a fresh ID, clamping importance to [0,10].
func NewRecord(agentID, text string, ts time.Time, importance float64, source Source) *Record {
	return &Record{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Text:       text,
		Timestamp:  ts,
		Importance: ClampImportance(importance),
		Source:     source,
	}
}

// ClampImportance bounds an importance value to the [0,10] scale.
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// TimeRange is a half-open interval [Start, End) over record timestamps.
// It is derived per query and never persisted.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
