package relation

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Kind categorizes an interaction between two agents.
type Kind string

const (
	KindConversation  Kind = "conversation"
	KindCollaboration Kind = "collaboration"
	KindTransaction   Kind = "transaction"
)

// interactionBoost is the strength gained per recorded interaction.
const interactionBoost = 0.1

// historyCap bounds the per-edge interaction note history.
const historyCap = 20

// Acquaintance is one agent another agent has interacted with.
type Acquaintance struct {
	AgentID         string    `json:"agent_id"`
	Kind            Kind      `json:"kind"`
	Strength        float64   `json:"strength"` // 0-1
	History         []string  `json:"history,omitempty"`
	LastInteraction time.Time `json:"last_interaction"`
}

// Graph tracks agent interaction edges in Neo4j. Social retrieval
// records an edge per query so the graph mirrors who has actually been
// recalled together; strength decays between interactions.
type Graph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// New creates a Neo4j-backed relation graph.
func New(uri, user, password string, logger *zap.Logger) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Graph{driver: driver, logger: logger}, nil
}

// Ping verifies the Neo4j connection.
func (g *Graph) Ping(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

// Close shuts down the Neo4j driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// RecordInteraction merges the directed edge and reinforces it: strength
// climbs by the interaction boost (capped at 1.0) and the note joins the
// bounded history.
func (g *Graph) RecordInteraction(ctx context.Context, fromAgent, toAgent string, kind Kind, note string) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (a:Agent {id: $from})
		 MERGE (b:Agent {id: $to})
		 MERGE (a)-[r:INTERACTED_WITH {kind: $kind}]->(b)
		 ON CREATE SET r.strength = $boost, r.history = [$note], r.updated_at = datetime()
		 ON MATCH SET r.strength = CASE
		       WHEN r.strength + $boost > 1.0 THEN 1.0
		       ELSE r.strength + $boost
		     END,
		     r.history = r.history[-($cap - 1)..] + $note,
		     r.updated_at = datetime()`,
		map[string]interface{}{
			"from":  fromAgent,
			"to":    toAgent,
			"kind":  string(kind),
			"note":  note,
			"boost": interactionBoost,
			"cap":   historyCap,
		})
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// Acquaintances lists the agents one agent has interacted with, strongest
// edges first.
func (g *Graph) Acquaintances(ctx context.Context, agentID string) ([]*Acquaintance, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Agent {id: $id})-[r:INTERACTED_WITH]->(b:Agent)
		 RETURN b.id AS other, r.kind AS kind, r.strength AS strength,
		        r.history AS history, r.updated_at AS updated
		 ORDER BY r.strength DESC`,
		map[string]interface{}{"id": agentID})
	if err != nil {
		return nil, fmt.Errorf("acquaintances: %w", err)
	}

	var out []*Acquaintance
	for result.Next(ctx) {
		rec := result.Record()
		acq := &Acquaintance{}
		if v, ok := rec.Get("other"); ok {
			acq.AgentID, _ = v.(string)
		}
		if v, ok := rec.Get("kind"); ok {
			if s, isStr := v.(string); isStr {
				acq.Kind = Kind(s)
			}
		}
		if v, ok := rec.Get("strength"); ok {
			acq.Strength, _ = v.(float64)
		}
		if v, ok := rec.Get("history"); ok {
			if items, isList := v.([]interface{}); isList {
				for _, it := range items {
					if s, isStr := it.(string); isStr {
						acq.History = append(acq.History, s)
					}
				}
			}
		}
		if v, ok := rec.Get("updated"); ok {
			if ts, isTime := v.(time.Time); isTime {
				acq.LastInteraction = ts
			}
		}
		out = append(out, acq)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("acquaintances: %w", err)
	}
	return out, nil
}
