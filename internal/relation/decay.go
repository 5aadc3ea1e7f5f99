package relation

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// DecayConfig controls relationship strength decay.
type DecayConfig struct {
	HalfLifeHours float64 // time for strength to halve (default 168 = 1 week)
	MinStrength   float64 // floor value, never decay below this (default 0.05)
}

// DefaultDecayConfig returns sensible defaults.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		HalfLifeHours: 168,
		MinStrength:   0.05,
	}
}

// DecaySweep applies time-based exponential decay to all edge strengths.
// Called periodically from the sweeper.
func (g *Graph) DecaySweep(ctx context.Context, cfg DecayConfig) (int, error) {
	if cfg.HalfLifeHours == 0 {
		cfg = DefaultDecayConfig()
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	// Exponential decay: strength * 2^(-hours_elapsed / half_life),
	// clamped to the MinStrength floor.
	result, err := session.Run(ctx,
		`MATCH (:Agent)-[r:INTERACTED_WITH]->(:Agent)
		 WHERE r.strength > $minStrength
		 WITH r,
		      duration.between(r.updated_at, datetime()).hours AS hours
		 WHERE hours > 0
		 SET r.strength = CASE
		   WHEN r.strength * (0.5 ^ (toFloat(hours) / $halfLife)) < $minStrength
		   THEN $minStrength
		   ELSE r.strength * (0.5 ^ (toFloat(hours) / $halfLife))
		 END
		 RETURN count(r) AS updated`,
		map[string]interface{}{
			"halfLife":    cfg.HalfLifeHours,
			"minStrength": cfg.MinStrength,
		})
	if err != nil {
		return 0, err
	}

	var updated int
	if result.Next(ctx) {
		if v, ok := result.Record().Get("updated"); ok {
			updated = int(v.(int64))
		}
	}

	g.logger.Info("relation decay sweep complete", zap.Int("updated", updated))
	return updated, nil
}

// Sweeper triggers decay sweeps from clock ticks, at most once per
// interval of simulated time. It implements clock.TickListener.
type Sweeper struct {
	graph    *Graph
	cfg      DecayConfig
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	logger   *zap.Logger
}

// NewSweeper creates a sweeper firing once per interval.
func NewSweeper(graph *Graph, cfg DecayConfig, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{graph: graph, cfg: cfg, interval: interval, logger: logger}
}

// OnTick runs a decay sweep when enough simulated time has passed.
func (s *Sweeper) OnTick(simTime time.Time) {
	s.mu.Lock()
	if !s.last.IsZero() && simTime.Sub(s.last) < s.interval {
		s.mu.Unlock()
		return
	}
	s.last = simTime
	s.mu.Unlock()

	if _, err := s.graph.DecaySweep(context.Background(), s.cfg); err != nil {
		s.logger.Warn("relation decay sweep failed", zap.Error(err))
	}
}
