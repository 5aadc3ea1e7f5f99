package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/mnemo/internal/api"
	"github.com/nidhogg/mnemo/internal/clock"
	"github.com/nidhogg/mnemo/internal/config"
	"github.com/nidhogg/mnemo/internal/embedding"
	"github.com/nidhogg/mnemo/internal/memory"
	"github.com/nidhogg/mnemo/internal/relation"
	"github.com/nidhogg/mnemo/internal/retrieval"
	pgstore "github.com/nidhogg/mnemo/internal/store"
	"github.com/nidhogg/mnemo/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting mnemo...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/mnemo.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	scoring := scoringFromConfig(cfg)
	opts := optionsFromConfig(cfg)

	// Clock: simulated worlds run on a sped-up clock, everything else on
	// wall time.
	var clk clock.Clock = clock.System{}
	var simClock *clock.Sim
	if cfg.Clock.Mode == "sim" {
		tick := time.Duration(cfg.Clock.TickSeconds * float64(time.Second))
		if tick <= 0 {
			tick = time.Second
		}
		speed := cfg.Clock.Speed
		if speed <= 0 {
			speed = 1.0
		}
		simClock = clock.NewSim(tick, speed, logger)
		clk = simClock
	}

	// Embedding provider
	embCfg := embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	}
	var embedder embedding.Provider
	switch cfg.Embedding.Provider {
	case "api":
		embedder = embedding.NewAPIProvider(embCfg)
	case "local":
		embedder = embedding.NewLocalProvider(embCfg)
	default:
		embedder = embedding.NewCorpusProvider(cfg.Embedding.Dimension)
	}

	var embCache *embedding.Cache
	if cfg.Database.Redis.URL != "" {
		ttl := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
		cache, cacheErr := embedding.NewCache(embedder, cfg.Database.Redis.URL, cfg.Embedding.Model, ttl, logger)
		if cacheErr != nil {
			logger.Warn("Redis unavailable, running without embedding cache", zap.Error(cacheErr))
		} else {
			embCache = cache
			embedder = cache
		}
	}

	// Vector index
	var index *vectorstore.Index
	if cfg.Database.Qdrant.Host != "" {
		ix, ixErr := vectorstore.New(vectorstore.Config{
			Host:       cfg.Database.Qdrant.Host,
			Port:       cfg.Database.Qdrant.Port,
			Collection: cfg.Database.Qdrant.Collection,
		})
		if ixErr != nil {
			logger.Warn("Qdrant unavailable, running without vector index", zap.Error(ixErr))
		} else if ensureErr := ix.Ensure(context.Background(), uint64(embedder.Dimension())); ensureErr != nil {
			logger.Warn("Qdrant collection setup failed, running without vector index", zap.Error(ensureErr))
			ix.Close()
		} else {
			index = ix
		}
	}

	// Record store: Postgres when configured, in-memory otherwise
	var registry memory.Registry
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, index, scoring, clk.Now, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, falling back to in-memory store", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			registry = ps
		}
	}
	if registry == nil {
		registry = memory.NewInMemRegistry(scoring, clk.Now)
		logger.Info("Using in-memory record store")
	}

	// Relation graph requires Neo4j
	var relations *relation.Graph
	if cfg.Database.Neo4j.URI != "" {
		g, gErr := relation.New(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without relation graph", zap.Error(gErr))
		} else if pingErr := g.Ping(context.Background()); pingErr != nil {
			logger.Warn("Neo4j unreachable, running without relation graph", zap.Error(pingErr))
			g.Close(context.Background())
		} else {
			relations = g
		}
	}

	// Relation strength fades on simulated time
	if simClock != nil {
		if relations != nil {
			sweepHours := cfg.Clock.SweepHours
			if sweepHours <= 0 {
				sweepHours = 1.0
			}
			interval := time.Duration(sweepHours * float64(time.Hour))
			sweeper := relation.NewSweeper(relations, relation.DefaultDecayConfig(), interval, logger)
			simClock.AddListener(sweeper)
		}
		simClock.Start()
		logger.Info("Simulation clock started",
			zap.Float64("speed", cfg.Clock.Speed))
	}

	engine := retrieval.New(embedder, clk, scoring, opts, logger)
	handler := api.NewHandler(registry, engine, embedder, relations, clk, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("mnemo listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down mnemo...")
	if simClock != nil {
		simClock.Stop()
	}
	ctx := context.Background()
	srv.Shutdown(ctx)
	if relations != nil {
		relations.Close(ctx)
	}
	if pgStore != nil {
		pgStore.Close()
	}
	if embCache != nil {
		embCache.Close()
	}
	if index != nil {
		index.Close()
	}
}

func scoringFromConfig(cfg *config.Config) memory.ScoreConfig {
	sc := memory.DefaultScoreConfig()
	if cfg.Scoring == nil {
		return sc
	}
	sc.SimilarityWeight = cfg.Scoring.SimilarityWeight
	sc.ImportanceWeight = cfg.Scoring.ImportanceWeight
	sc.RecencyWeight = cfg.Scoring.RecencyWeight
	if cfg.Scoring.RecencyHalfLifeHours > 0 {
		sc.RecencyHalfLife = time.Duration(cfg.Scoring.RecencyHalfLifeHours * float64(time.Hour))
	}
	return sc
}

func optionsFromConfig(cfg *config.Config) retrieval.Options {
	if cfg.Retrieval == nil {
		return retrieval.DefaultOptions()
	}
	r := cfg.Retrieval
	return retrieval.Options{
		PlanK:              r.PlanK,
		PlanMinImportance:  r.PlanMinImportance,
		PlanWindowHours:    r.PlanWindowHours,
		PlanGoalTail:       r.PlanGoalTail,
		PlanReflectionTail: r.PlanReflectionTail,
		PlanLimit:          r.PlanLimit,

		ReflectPeriodHours:   r.ReflectPeriodHours,
		ReflectMinImportance: r.ReflectMinImportance,

		SocialK:             r.SocialK,
		SocialMinImportance: r.SocialMinImportance,
		SocialLimit:         r.SocialLimit,

		SimilarK:             r.SimilarK,
		SimilarMinImportance: r.SimilarMinImportance,

		KnowledgeK:             r.KnowledgeK,
		KnowledgeMinImportance: r.KnowledgeMinImportance,

		MinRelevance:     r.MinRelevance,
		SummaryMaxLength: r.SummaryMaxLength,
	}
}
