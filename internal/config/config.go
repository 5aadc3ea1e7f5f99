package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Embedding EmbeddingConfig  `json:"embedding"`
	Database  DatabaseConfig   `json:"database"`
	Scoring   *ScoringConfig   `json:"scoring,omitempty"`
	Retrieval *RetrievalConfig `json:"retrieval,omitempty"`
	Clock     ClockConfig      `json:"clock"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type EmbeddingConfig struct {
	Provider      string `json:"provider"` // "api", "local", or "corpus"
	Endpoint      string `json:"endpoint"`
	Model         string `json:"model"`
	APIKey        string `json:"api_key"`
	Dimension     int    `json:"dimension"`
	CacheTTLHours int    `json:"cache_ttl_hours"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Qdrant   QdrantConfig   `json:"qdrant"`
	Redis    RedisConfig    `json:"redis"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type QdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Collection string `json:"collection"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// ScoringConfig overrides the composite score blend. Omitting the block
// keeps the defaults.
type ScoringConfig struct {
	SimilarityWeight     float64 `json:"similarity_weight"`
	ImportanceWeight     float64 `json:"importance_weight"`
	RecencyWeight        float64 `json:"recency_weight"`
	RecencyHalfLifeHours float64 `json:"recency_half_life_hours"`
}

// RetrievalConfig overrides the retrieval policy tunables. Omitting the
// block keeps the defaults; a present block is taken whole.
type RetrievalConfig struct {
	PlanK              int     `json:"plan_k"`
	PlanMinImportance  float64 `json:"plan_min_importance"`
	PlanWindowHours    int     `json:"plan_window_hours"`
	PlanGoalTail       int     `json:"plan_goal_tail"`
	PlanReflectionTail int     `json:"plan_reflection_tail"`
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

type ClockConfig struct {
	Mode        string  `json:"mode"` // "system" or "sim"
	TickSeconds float64 `json:"tick_seconds"`
	Speed       float64 `json:"speed"`
	SweepHours  float64 `json:"sweep_hours"` // relation decay sweep cadence
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
