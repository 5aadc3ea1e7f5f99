package memory

import (
	"math"
	"time"
)

// ScoreConfig controls the composite retrieval score blend.
type ScoreConfig struct {
	SimilarityWeight float64       `json:"similarity_weight"`
	ImportanceWeight float64       `json:"importance_weight"`
	RecencyWeight    float64       `json:"recency_weight"`
	RecencyHalfLife  time.Duration `json:"recency_half_life"` // age at which recency weight halves
}

// DefaultScoreConfig returns the standard blend: similarity dominates,
// then importance, then recency with a one-day half-life.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		SimilarityWeight: 0.5,
		ImportanceWeight: 0.3,
		RecencyWeight:    0.2,
		RecencyHalfLife:  24 * time.Hour,
	}
}

// Composite blends cosine similarity to the query, normalized importance,
// and exponential recency decay into a single ranking value. A nil query
// embedding or a record without an embedding contributes zero similarity.
func (c ScoreConfig) Composite(rec *Record, queryEmbedding []float32, now time.Time) float64 {
	var sim float64
	if len(queryEmbedding) > 0 && len(rec.Embedding) > 0 {
		sim = CosineSimilarity(rec.Embedding, queryEmbedding)
	}
	return c.SimilarityWeight*sim +
		c.ImportanceWeight*(rec.Importance/10.0) +
		c.RecencyWeight*c.recency(rec.Timestamp, now)
}

// recency decays exponentially with record age, 1.0 at age zero.
func (c ScoreConfig) recency(ts, now time.Time) float64 {
	halfLife := c.RecencyHalfLife
	if halfLife <= 0 {
		halfLife = 24 * time.Hour
	}
	age := now.Sub(ts)
	if age <= 0 {
		return 1.0
	}
	return math.Pow(0.5, age.Hours()/halfLife.Hours())
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has zero magnitude or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
