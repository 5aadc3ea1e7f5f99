package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nidhogg/mnemo/internal/memory"
	"github.com/nidhogg/mnemo/internal/vectorstore"
	"go.uber.org/zap"
)

// Store is the durable memory backend: records live in PostgreSQL, their
// embeddings in the Qdrant index. Composite search pulls candidates from
// Qdrant, hydrates rows, applies the contract filters, and ranks with
// the configured score blend.
type Store struct {
	db      *pgxpool.Pool
	index   *vectorstore.Index
	scoring memory.ScoreConfig
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Store with a pgx connection pool. The now func supplies
// the reference time for recency scoring.
func New(dsn string, index *vectorstore.Index, scoring memory.ScoreConfig, now func() time.Time, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	logger.Info("PostgreSQL connected")
	return &Store{db: pool, index: index, scoring: scoring, now: now, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations directory.
func (s *Store) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

// Agent returns the agent-scoped memory.Store view used by retrieval.
func (s *Store) Agent(agentID string) memory.Store {
	return &agentView{store: s, agentID: agentID}
}

// AgentIDs lists the agents that currently own records.
func (s *Store) AgentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT agent_id FROM records ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}
